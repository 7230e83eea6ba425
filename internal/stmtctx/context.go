// Copyright 2021 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stmtctx

import (
	"fmt"
	"strings"

	"github.com/ecodeclub/eshard/statement"
)

const (
	avgDerivedCount = "AVG_DERIVED_COUNT_%d"
	avgDerivedSum   = "AVG_DERIVED_SUM_%d"
	orderByDerived  = "ORDER_BY_DERIVED_%d"
	groupByDerived  = "GROUP_BY_DERIVED_%d"
)

// DerivedColumn 为了归并而补充到投影末尾的列
type DerivedColumn struct {
	Expression string
	Alias      string
}

// SQL 追加到投影里面的文本
func (d DerivedColumn) SQL() string {
	return d.Expression + " AS " + d.Alias
}

// Item 排序或者分组项
// Ordinal 大于 0 的时候按位置引用，否则按照 Label 在结果集的列名里面查找
type Item struct {
	Label   string
	Ordinal int
	Desc    bool
}

// Index 在结果集的列里面找到该项的下标
func (i Item) Index(columns []string) (int, error) {
	if i.Ordinal > 0 {
		if i.Ordinal > len(columns) {
			return -1, fmt.Errorf("eshard: 排序位置 %d 超出列数 %d", i.Ordinal, len(columns))
		}
		return i.Ordinal - 1, nil
	}
	return IndexOf(columns, i.Label)
}

// Aggregation 投影里面的聚合函数
type Aggregation struct {
	Type  statement.AggregationType
	Label string
	// AVG 使用的派生列
	CountLabel string
	SumLabel   string
}

// Context 语句上下文，在路由之后、改写和归并之前构造，构造之后不可变
type Context struct {
	Statement    *statement.Statement
	Derived      []DerivedColumn
	OrderBy      []Item
	GroupBy      []Item
	Aggregations []Aggregation
	// DistinctAll SELECT DISTINCT 当作按照所有可见列分组
	DistinctAll  bool
	HasShorthand bool
	// KeyColumn 和 GeneratedKeys 只有需要生成主键的 INSERT 才有
	KeyColumn     string
	GeneratedKeys []any
}

// WithGeneratedKeys 返回携带预生成主键的副本
func (c *Context) WithGeneratedKeys(column string, keys []any) *Context {
	res := *c
	res.KeyColumn = column
	res.GeneratedKeys = keys
	return &res
}

func New(stmt *statement.Statement) *Context {
	c := &Context{Statement: stmt}
	if stmt.Kind != statement.KindSelect || stmt.Projections == nil {
		return c
	}
	items := stmt.Projections.Items
	for _, p := range items {
		if p.Type == statement.ProjectionShorthand {
			c.HasShorthand = true
		}
	}
	avgIdx := 0
	for _, p := range items {
		if p.Type != statement.ProjectionAggregation {
			continue
		}
		agg := Aggregation{Type: p.Aggregation, Label: p.Label()}
		if p.Aggregation == statement.AggAvg {
			agg.CountLabel = fmt.Sprintf(avgDerivedCount, avgIdx)
			agg.SumLabel = fmt.Sprintf(avgDerivedSum, avgIdx)
			c.Derived = append(c.Derived,
				DerivedColumn{Expression: "COUNT(" + p.Inner + ")", Alias: agg.CountLabel},
				DerivedColumn{Expression: "SUM(" + p.Inner + ")", Alias: agg.SumLabel})
			avgIdx++
		}
		c.Aggregations = append(c.Aggregations, agg)
	}
	c.OrderBy = c.items(stmt.OrderBy, orderByDerived)
	c.GroupBy = c.items(stmt.GroupBy, groupByDerived)
	c.DistinctAll = stmt.Distinct && len(stmt.GroupBy) == 0
	return c
}

func (c *Context) items(src []statement.OrderByItem, derivedFormat string) []Item {
	res := make([]Item, 0, len(src))
	idx := 0
	for _, o := range src {
		if o.Ordinal > 0 {
			res = append(res, Item{Ordinal: o.Ordinal, Desc: o.Desc})
			continue
		}
		if label, ok := c.findProjection(o.Column); ok {
			res = append(res, Item{Label: label, Desc: o.Desc})
			continue
		}
		if c.HasShorthand {
			res = append(res, Item{Label: o.Column.Name, Desc: o.Desc})
			continue
		}
		expr := o.Column.Name
		if o.Column.Owner != "" {
			expr = o.Column.Owner + "." + expr
		}
		if alias, ok := c.derivedAlias(expr); ok {
			res = append(res, Item{Label: alias, Desc: o.Desc})
			continue
		}
		alias := fmt.Sprintf(derivedFormat, idx)
		idx++
		c.Derived = append(c.Derived, DerivedColumn{Expression: expr, Alias: alias})
		res = append(res, Item{Label: alias, Desc: o.Desc})
	}
	return res
}

func (c *Context) derivedAlias(expr string) (string, bool) {
	for _, d := range c.Derived {
		if strings.EqualFold(d.Expression, expr) {
			return d.Alias, true
		}
	}
	return "", false
}

// findProjection 找到排序或者分组列在投影里面的名字
func (c *Context) findProjection(col statement.ColumnRef) (string, bool) {
	for _, p := range c.Statement.Projections.Items {
		if col.Owner == "" && p.Alias != "" && strings.EqualFold(p.Alias, col.Name) {
			return p.Alias, true
		}
		if p.Type != statement.ProjectionColumn || !strings.EqualFold(p.Column.Name, col.Name) {
			continue
		}
		if col.Owner != "" && p.Column.Owner != "" && !strings.EqualFold(col.Owner, p.Column.Owner) {
			continue
		}
		return p.Label(), true
	}
	return "", false
}

// HasGrouping 需要分组归并
func (c *Context) HasGrouping() bool {
	return len(c.GroupBy) > 0 || len(c.Aggregations) > 0 || c.DistinctAll
}

// GroupByEqualsOrderBy ORDER BY 和 GROUP BY 完全一致的时候可以流式分组
func (c *Context) GroupByEqualsOrderBy() bool {
	if len(c.GroupBy) == 0 || len(c.GroupBy) != len(c.OrderBy) {
		return false
	}
	for i, g := range c.GroupBy {
		o := c.OrderBy[i]
		if g.Desc != o.Desc || g.Ordinal != o.Ordinal || !strings.EqualFold(g.Label, o.Label) {
			return false
		}
	}
	return true
}

// VisibleColumns 结果集里面去掉派生列之后的列数
func (c *Context) VisibleColumns(total int) int {
	n := total - len(c.Derived)
	if n < 0 {
		return 0
	}
	return n
}

// IndexOf 不区分大小写查找列名
func IndexOf(columns []string, label string) (int, error) {
	for i, col := range columns {
		if strings.EqualFold(col, label) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("eshard: 结果集中找不到列 %s", label)
}
