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

// Package test 是用于辅助测试的包。仅限于内部使用
package test

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ecodeclub/eshard/statement"
)

// StatementBuilder 根据 SQL 文本计算各个片段的下标，代替解析器构造测试用的语句
// 所有查找都是从上一次找到的位置往后找，找不到直接 panic
type StatementBuilder struct {
	stmt   *statement.Statement
	cursor int
}

func NewStatement(kind statement.Kind, sql string) *StatementBuilder {
	markers := make([]int, 0, 4)
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			markers = append(markers, i)
		}
	}
	return &StatementBuilder{
		stmt: &statement.Statement{
			SQL:              sql,
			Kind:             kind,
			ParameterMarkers: markers,
		},
	}
}

func Select(sql string) *StatementBuilder {
	return NewStatement(statement.KindSelect, sql)
}

func Insert(sql string) *StatementBuilder {
	return NewStatement(statement.KindInsert, sql)
}

func Update(sql string) *StatementBuilder {
	return NewStatement(statement.KindUpdate, sql)
}

func Delete(sql string) *StatementBuilder {
	return NewStatement(statement.KindDelete, sql)
}

func (b *StatementBuilder) find(text string) int {
	idx := strings.Index(b.stmt.SQL[b.cursor:], text)
	if idx < 0 {
		panic(fmt.Sprintf("test: %q 里面找不到 %q", b.stmt.SQL, text))
	}
	return idx + b.cursor
}

// Table text 是表名在 SQL 里面的原样文本，可以带引号
func (b *StatementBuilder) Table(text string, alias string) *StatementBuilder {
	idx := b.find(text)
	b.stmt.Tables = append(b.stmt.Tables, statement.TableSegment{
		Name:       strings.Trim(text, "`\""),
		Alias:      alias,
		StartIndex: idx,
		StopIndex:  idx + len(text) - 1,
	})
	b.cursor = idx + len(text)
	return b
}

// Projections SELECT 或者 SELECT DISTINCT 之后到 FROM 之前的部分
func (b *StatementBuilder) Projections(items ...statement.Projection) *StatementBuilder {
	sql := b.stmt.SQL
	start := len("SELECT ")
	if strings.HasPrefix(strings.ToUpper(sql), "SELECT DISTINCT ") {
		start = len("SELECT DISTINCT ")
		b.stmt.Distinct = true
	}
	stop := strings.Index(sql, " FROM ")
	if stop < 0 {
		panic(fmt.Sprintf("test: %q 没有 FROM", sql))
	}
	b.stmt.Projections = &statement.ProjectionsSegment{
		StartIndex: start,
		StopIndex:  stop - 1,
		Items:      items,
	}
	return b
}

func (b *StatementBuilder) Where(e statement.Expr) *StatementBuilder {
	b.stmt.Where = e
	return b
}

func (b *StatementBuilder) GroupBy(items ...statement.OrderByItem) *StatementBuilder {
	b.stmt.GroupBy = items
	return b
}

func (b *StatementBuilder) OrderBy(items ...statement.OrderByItem) *StatementBuilder {
	b.stmt.OrderBy = items
	return b
}

// Limit 对应 LIMIT offset, rowCount，offset 为空表示只有 LIMIT rowCount
// 值可以是数字也可以是 ?
func (b *StatementBuilder) Limit(offset string, rowCount string) *StatementBuilder {
	b.cursor = b.find("LIMIT ") + len("LIMIT ")
	pg := &statement.Pagination{}
	if offset != "" {
		pg.Offset = b.paginationValue(offset)
	}
	pg.RowCount = b.paginationValue(rowCount)
	b.stmt.Pagination = pg
	return b
}

func (b *StatementBuilder) paginationValue(text string) *statement.PaginationValue {
	idx := b.find(text)
	b.cursor = idx + len(text)
	res := &statement.PaginationValue{StartIndex: idx, StopIndex: idx + len(text) - 1}
	if text == "?" {
		res.IsParam = true
		res.ParamIndex = b.paramIndex(idx)
		return res
	}
	val, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		panic(err)
	}
	res.Value = val
	return res
}

func (b *StatementBuilder) paramIndex(pos int) int {
	for i, p := range b.stmt.ParameterMarkers {
		if p == pos {
			return i
		}
	}
	panic(fmt.Sprintf("test: 下标 %d 不是占位符", pos))
}

// Values 设置 INSERT 的列和每一行的值，行按照括号在 VALUES 之后依次查找
func (b *StatementBuilder) Values(columns []string, rows ...[]statement.Expr) *StatementBuilder {
	open := b.find("(")
	b.cursor = open
	closeIdx := b.find(")")
	ins := &statement.InsertSegment{
		Columns:          columns,
		ColumnsStopIndex: closeIdx,
	}
	b.cursor = b.find("VALUES")
	for _, vals := range rows {
		start := b.find("(")
		b.cursor = start
		stop := b.find(")")
		b.cursor = stop + 1
		ins.Rows = append(ins.Rows, statement.InsertRow{
			Values:     vals,
			StartIndex: start,
			StopIndex:  stop,
		})
	}
	b.stmt.Insert = ins
	return b
}

func (b *StatementBuilder) Set(assignments ...statement.Assignment) *StatementBuilder {
	b.stmt.Assignments = assignments
	return b
}

func (b *StatementBuilder) Build() *statement.Statement {
	return b.stmt
}

// Col 没有 owner 的列
func Col(name string) statement.ColumnRef {
	return statement.ColumnRef{Name: name}
}

// Eq col = value
func Eq(col statement.ColumnRef, value statement.Expr) statement.Comparison {
	return statement.Comparison{Column: col, Op: statement.OpEQ, Value: value}
}

// Lit 字面量
func Lit(val any) statement.Literal {
	return statement.Literal{Value: val}
}

// Param 第 idx 个占位符
func Param(idx int) statement.Param {
	return statement.Param{Index: idx}
}

// ColumnProjection 普通列投影
func ColumnProjection(name string) statement.Projection {
	return statement.Projection{Type: statement.ProjectionColumn, Column: statement.ColumnRef{Name: name}}
}

// AggProjection 聚合函数投影，label 为空的时候使用默认的列名
func AggProjection(agg statement.AggregationType, inner string, alias string) statement.Projection {
	return statement.Projection{
		Type:        statement.ProjectionAggregation,
		Aggregation: agg,
		Inner:       inner,
		Text:        agg.String() + "(" + inner + ")",
		Alias:       alias,
	}
}
