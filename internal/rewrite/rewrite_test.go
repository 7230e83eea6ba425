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

package rewrite

import (
	"errors"
	"math"
	"testing"

	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/ecodeclub/eshard/internal/test"
	"github.com/ecodeclub/eshard/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderUnit(ds string, tables ...string) route.Unit {
	u := route.Unit{DataSource: route.DataSourceMapping{Logic: ds, Actual: ds}}
	for i := 0; i+1 < len(tables); i += 2 {
		u.Tables = append(u.Tables, route.TableMapping{Logic: tables[i], Actual: tables[i+1]})
	}
	return u
}

func TestRewriteAll(t *testing.T) {
	twoUnits := &route.Context{Units: []route.Unit{
		orderUnit("ds_0", "t_order", "t_order_0"),
		orderUnit("ds_1", "t_order", "t_order_1"),
	}}
	testCases := []struct {
		name    string
		sc      *stmtctx.Context
		rc      *route.Context
		params  []any
		want    []Unit
		wantErr error
	}{
		{
			name: "替换表名并且保留引号",
			sc: stmtctx.New(test.Select("SELECT * FROM `t_order` WHERE `user_id` = ?").Table("`t_order`", "").
				Where(test.Eq(test.Col("user_id"), test.Param(0))).Build()),
			rc:     &route.Context{Units: []route.Unit{orderUnit("ds_0", "t_order", "t_order_2")}},
			params: []any{42},
			want: []Unit{
				{DataSource: "ds_0", SQL: "SELECT * FROM `t_order_2` WHERE `user_id` = ?", Params: []any{42}},
			},
		},
		{
			name: "没有引号的表名和别名",
			sc: stmtctx.New(test.Select("SELECT o.id FROM t_order o JOIN t_config c ON o.cid = c.id").
				Table("t_order", "o").Table("t_config", "c").Build()),
			rc: &route.Context{Units: []route.Unit{orderUnit("ds_0", "t_order", "t_order_1", "t_config", "t_config")}},
			want: []Unit{
				{DataSource: "ds_0", SQL: "SELECT o.id FROM t_order_1 o JOIN t_config c ON o.cid = c.id", Params: []any{}},
			},
		},
		{
			name: "没有映射的表保持原样",
			sc:   stmtctx.New(test.Select("SELECT * FROM \"t_config\"").Table("\"t_config\"", "").Build()),
			rc:   &route.Context{Units: []route.Unit{orderUnit("ds_1")}},
			want: []Unit{
				{DataSource: "ds_1", SQL: "SELECT * FROM \"t_config\"", Params: []any{}},
			},
		},
		{
			name: "派生列和占位符分页",
			sc: stmtctx.New(test.Select("SELECT `id` FROM `t_order` ORDER BY `create_time` LIMIT ?, ?").
				Table("`t_order`", "").
				Projections(test.ColumnProjection("id")).
				OrderBy(statement.OrderByItem{Column: test.Col("create_time")}).
				Limit("?", "?").Build()),
			rc:     twoUnits,
			params: []any{10, 20},
			want: []Unit{
				{
					DataSource: "ds_0",
					SQL:        "SELECT `id`, create_time AS ORDER_BY_DERIVED_0 FROM `t_order_0` ORDER BY `create_time` LIMIT ?, ?",
					Params:     []any{int64(0), int64(30)},
				},
				{
					DataSource: "ds_1",
					SQL:        "SELECT `id`, create_time AS ORDER_BY_DERIVED_0 FROM `t_order_1` ORDER BY `create_time` LIMIT ?, ?",
					Params:     []any{int64(0), int64(30)},
				},
			},
		},
		{
			name: "字面量分页",
			sc: stmtctx.New(test.Select("SELECT `id` FROM `t_order` WHERE `id` > ? LIMIT 5, 10").
				Table("`t_order`", "").
				Projections(test.ColumnProjection("id")).
				Limit("5", "10").Build()),
			rc:     twoUnits,
			params: []any{100},
			want: []Unit{
				{DataSource: "ds_0", SQL: "SELECT `id` FROM `t_order_0` WHERE `id` > ? LIMIT 0, 15", Params: []any{100}},
				{DataSource: "ds_1", SQL: "SELECT `id` FROM `t_order_1` WHERE `id` > ? LIMIT 0, 15", Params: []any{100}},
			},
		},
		{
			name: "内存分组取全部数据",
			sc: stmtctx.New(test.Select("SELECT `user_id`, COUNT(*) FROM `t_order` GROUP BY `user_id` LIMIT ?").
				Table("`t_order`", "").
				Projections(test.ColumnProjection("user_id"), test.AggProjection(statement.AggCount, "*", "")).
				GroupBy(statement.OrderByItem{Column: test.Col("user_id")}).
				Limit("", "?").Build()),
			rc:     &route.Context{Units: []route.Unit{orderUnit("ds_0", "t_order", "t_order_0"), orderUnit("ds_0", "t_order", "t_order_1")}},
			params: []any{3},
			want: []Unit{
				{DataSource: "ds_0", SQL: "SELECT `user_id`, COUNT(*) FROM `t_order_0` GROUP BY `user_id` LIMIT ?", Params: []any{int64(math.MaxInt64)}},
				{DataSource: "ds_0", SQL: "SELECT `user_id`, COUNT(*) FROM `t_order_1` GROUP BY `user_id` LIMIT ?", Params: []any{int64(math.MaxInt64)}},
			},
		},
		{
			name: "AVG 派生列",
			sc: stmtctx.New(test.Select("SELECT AVG(`amount`) FROM `t_order`").
				Table("`t_order`", "").
				Projections(test.AggProjection(statement.AggAvg, "`amount`", "")).Build()),
			rc: twoUnits,
			want: []Unit{
				{
					DataSource: "ds_0",
					SQL:        "SELECT AVG(`amount`), COUNT(`amount`) AS AVG_DERIVED_COUNT_0, SUM(`amount`) AS AVG_DERIVED_SUM_0 FROM `t_order_0`",
					Params:     []any{},
				},
				{
					DataSource: "ds_1",
					SQL:        "SELECT AVG(`amount`), COUNT(`amount`) AS AVG_DERIVED_COUNT_0, SUM(`amount`) AS AVG_DERIVED_SUM_0 FROM `t_order_1`",
					Params:     []any{},
				},
			},
		},
		{
			name: "单个路由单元不改写分页和投影",
			sc: stmtctx.New(test.Select("SELECT `id` FROM `t_order` ORDER BY `create_time` LIMIT 5, 10").
				Table("`t_order`", "").
				Projections(test.ColumnProjection("id")).
				OrderBy(statement.OrderByItem{Column: test.Col("create_time")}).
				Limit("5", "10").Build()),
			rc: &route.Context{Units: []route.Unit{orderUnit("ds_0", "t_order", "t_order_3")}},
			want: []Unit{
				{DataSource: "ds_0", SQL: "SELECT `id` FROM `t_order_3` ORDER BY `create_time` LIMIT 5, 10", Params: []any{}},
			},
		},
		{
			name: "INSERT 按行拆分并且补充主键",
			sc: stmtctx.New(test.Insert("INSERT INTO `t_order` (`user_id`, `amount`) VALUES (?, 10), (?, 20), (?, 30)").
				Table("`t_order`", "").
				Values([]string{"user_id", "amount"},
					[]statement.Expr{test.Param(0), test.Lit(10)},
					[]statement.Expr{test.Param(1), test.Lit(20)},
					[]statement.Expr{test.Param(2), test.Lit(30)}).Build()).
				WithGeneratedKeys("order_id", []any{int64(100), int64(101), int64(102)}),
			rc: &route.Context{
				Units: []route.Unit{
					orderUnit("ds_1", "t_order", "t_order_0"),
					orderUnit("ds_0", "t_order", "t_order_1"),
				},
				InsertRows: [][]int{{0, 2}, {1}},
			},
			params: []any{1, 2, 3},
			want: []Unit{
				{
					DataSource: "ds_1",
					SQL:        "INSERT INTO `t_order_0` (`user_id`, `amount`, order_id) VALUES (?, 10, ?), (?, 30, ?)",
					Params:     []any{1, int64(100), 3, int64(102)},
				},
				{
					DataSource: "ds_0",
					SQL:        "INSERT INTO `t_order_1` (`user_id`, `amount`, order_id) VALUES (?, 20, ?)",
					Params:     []any{2, int64(101)},
				},
			},
		},
		{
			name: "INSERT 不需要主键",
			sc: stmtctx.New(test.Insert("INSERT INTO `t_order` (`user_id`) VALUES (?), (?)").
				Table("`t_order`", "").
				Values([]string{"user_id"},
					[]statement.Expr{test.Param(0)},
					[]statement.Expr{test.Param(1)}).Build()),
			rc: &route.Context{
				Units:      []route.Unit{orderUnit("ds_0", "t_order", "t_order_1")},
				InsertRows: [][]int{{1}},
			},
			params: []any{4, 5},
			want: []Unit{
				{DataSource: "ds_0", SQL: "INSERT INTO `t_order_1` (`user_id`) VALUES (?)", Params: []any{5}},
			},
		},
		{
			name: "参数不够",
			sc: stmtctx.New(test.Select("SELECT * FROM `t_order` WHERE `id` = ?").Table("`t_order`", "").
				Where(test.Eq(test.Col("id"), test.Param(0))).Build()),
			rc:      &route.Context{Units: []route.Unit{orderUnit("ds_0", "t_order", "t_order_0")}},
			wantErr: errs.NewInvalidParameterIndexError(0, 0),
		},
		{
			name: "分页参数不合法",
			sc: stmtctx.New(test.Select("SELECT `id` FROM `t_order` LIMIT ?").Table("`t_order`", "").
				Projections(test.ColumnProjection("id")).
				Limit("", "?").Build()),
			rc:      twoUnits,
			params:  []any{"abc"},
			wantErr: errs.NewInvalidPaginationError("abc"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tokens, err := Generate(DefaultGenerators(), tc.sc, tc.rc)
			require.NoError(t, err)
			res, err := RewriteAll(tc.sc.Statement, tokens, tc.rc, tc.params)
			assert.Equal(t, tc.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestNewTokens(t *testing.T) {
	sql := "SELECT * FROM t_order"
	testCases := []struct {
		name    string
		tokens  []Token
		wantLen int
		wantErr func(err error) bool
	}{
		{
			name: "按照起始位置排序",
			tokens: []Token{
				tableToken{span: span{start: 14, stop: 20}, logic: "t_order"},
				projectionsToken{insertion: insertion{at: 8}, text: ", a"},
			},
			wantLen: 2,
		},
		{
			name: "在末尾插入",
			tokens: []Token{
				projectionsToken{insertion: insertion{at: len(sql)}, text: " LIMIT 1"},
			},
			wantLen: 1,
		},
		{
			name: "重叠",
			tokens: []Token{
				tableToken{span: span{start: 14, stop: 20}, logic: "t_order"},
				tableToken{span: span{start: 10, stop: 15}, logic: "t_order"},
			},
			wantErr: func(err error) bool {
				var target *errs.TokenOverlapError
				return errors.As(err, &target)
			},
		},
		{
			name: "越界",
			tokens: []Token{
				tableToken{span: span{start: 14, stop: 30}, logic: "t_order"},
			},
			wantErr: func(err error) bool {
				var target *errs.TokenRangeError
				return errors.As(err, &target)
			},
		},
		{
			name: "负数下标",
			tokens: []Token{
				tableToken{span: span{start: -1, stop: 3}, logic: "t_order"},
			},
			wantErr: func(err error) bool {
				var target *errs.TokenRangeError
				return errors.As(err, &target)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewTokens(sql, tc.tokens)
			if tc.wantErr != nil {
				assert.True(t, tc.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLen, res.Len())
			for i := 1; i < res.Len(); i++ {
				assert.True(t, res.At(i-1).StartIndex() <= res.At(i).StartIndex())
			}
		})
	}
}
