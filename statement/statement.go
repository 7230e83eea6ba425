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

package statement

import (
	"strings"

	"github.com/ecodeclub/eshard/internal/errs"
)

// Kind 语句类型
type Kind uint8

const (
	KindOther Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "OTHER"
	}
}

// IsQuery 只有 SELECT 会返回结果集
func (k Kind) IsQuery() bool {
	return k == KindSelect
}

// Statement 是外部解析器产出的语句结构
// 所有 StartIndex / StopIndex 都是 SQL 里面的字节下标，左右都是闭区间
type Statement struct {
	SQL         string
	Kind        Kind
	Tables      []TableSegment
	Projections *ProjectionsSegment
	Distinct    bool
	Where       Expr
	GroupBy     []OrderByItem
	OrderBy     []OrderByItem
	Pagination  *Pagination
	Insert      *InsertSegment
	Assignments []Assignment
	// ParameterMarkers 是每一个 ? 在 SQL 中的下标，按照参数顺序排列
	ParameterMarkers []int
}

// TableNames 按照语句出现顺序返回去重之后的逻辑表名
func (s *Statement) TableNames() []string {
	res := make([]string, 0, len(s.Tables))
	seen := make(map[string]struct{}, len(s.Tables))
	for _, t := range s.Tables {
		key := strings.ToLower(t.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		res = append(res, t.Name)
	}
	return res
}

// ParamIndexesIn 返回落在 [start, stop] 里面的参数下标
func (s *Statement) ParamIndexesIn(start, stop int) []int {
	var res []int
	for i, pos := range s.ParameterMarkers {
		if pos >= start && pos <= stop {
			res = append(res, i)
		}
	}
	return res
}

// TableSegment 语句里面的一次表引用
type TableSegment struct {
	Name  string
	Alias string
	// StartIndex 和 StopIndex 覆盖表名本身，包含引号，不包含 schema 和别名
	StartIndex int
	StopIndex  int
}

// ColumnRef 列引用，Owner 可以是表名也可以是别名
type ColumnRef struct {
	Owner string
	Name  string
}

// ProjectionsSegment SELECT 和 FROM 之间的投影列表
type ProjectionsSegment struct {
	StartIndex int
	StopIndex  int
	Items      []Projection
}

type ProjectionType uint8

const (
	ProjectionColumn ProjectionType = iota
	ProjectionAggregation
	ProjectionShorthand
	ProjectionExpression
)

// AggregationType 聚合函数
type AggregationType uint8

const (
	AggCount AggregationType = iota
	AggSum
	AggMax
	AggMin
	AggAvg
)

func (a AggregationType) String() string {
	switch a {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMax:
		return "MAX"
	case AggMin:
		return "MIN"
	case AggAvg:
		return "AVG"
	default:
		return "UNKNOWN"
	}
}

// Projection 单个投影
type Projection struct {
	Type        ProjectionType
	Column      ColumnRef
	Aggregation AggregationType
	// Inner 聚合函数括号里面的表达式，例如 COUNT(*) 中的 *
	Inner string
	// Text 原始表达式文本，例如 COUNT(*)、price * 2
	Text  string
	Alias string
}

// Label 结果集里面这一列的名字
func (p Projection) Label() string {
	if p.Alias != "" {
		return p.Alias
	}
	switch p.Type {
	case ProjectionColumn:
		return p.Column.Name
	case ProjectionAggregation:
		if p.Text != "" {
			return p.Text
		}
		return p.Aggregation.String() + "(" + p.Inner + ")"
	default:
		return p.Text
	}
}

// OrderByItem 排序项，Ordinal 不为 0 时表示 ORDER BY 2 这种按位置排序
type OrderByItem struct {
	Column  ColumnRef
	Ordinal int
	Desc    bool
}

// PaginationValue 分页里面的一个值，要么是字面量，要么是占位符
type PaginationValue struct {
	Value      int64
	IsParam    bool
	ParamIndex int
	StartIndex int
	StopIndex  int
}

// Resolve 计算出实际的值
func (v *PaginationValue) Resolve(params []any) (int64, error) {
	if !v.IsParam {
		if v.Value < 0 {
			return 0, errs.NewInvalidPaginationError(v.Value)
		}
		return v.Value, nil
	}
	if v.ParamIndex < 0 || v.ParamIndex >= len(params) {
		return 0, errs.NewInvalidParameterIndexError(v.ParamIndex, len(params))
	}
	val, ok := toInt64(params[v.ParamIndex])
	if !ok || val < 0 {
		return 0, errs.NewInvalidPaginationError(params[v.ParamIndex])
	}
	return val, nil
}

// Pagination LIMIT / OFFSET，两者都可以缺省
type Pagination struct {
	Offset   *PaginationValue
	RowCount *PaginationValue
}

// InsertSegment INSERT 语句的列和值
type InsertSegment struct {
	Columns []string
	// ColumnsStopIndex 列列表右括号的下标
	ColumnsStopIndex int
	Rows             []InsertRow
}

// ValuesStartIndex 第一行 VALUES 的左括号
func (i *InsertSegment) ValuesStartIndex() int {
	return i.Rows[0].StartIndex
}

// ValuesStopIndex 最后一行 VALUES 的右括号
func (i *InsertSegment) ValuesStopIndex() int {
	return i.Rows[len(i.Rows)-1].StopIndex
}

// ColumnIndex 找到列的位置，不存在返回 -1
func (i *InsertSegment) ColumnIndex(name string) int {
	for idx, c := range i.Columns {
		if strings.EqualFold(c, name) {
			return idx
		}
	}
	return -1
}

// InsertRow VALUES 里面的一行，StartIndex 和 StopIndex 包含括号
type InsertRow struct {
	Values     []Expr
	StartIndex int
	StopIndex  int
}

// Assignment UPDATE 里面的 SET 子句
type Assignment struct {
	Column ColumnRef
	Value  Expr
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
