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
	"fmt"
	"strings"

	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/ecodeclub/eshard/statement"
)

// GeneratedKeyTokenGenerator 把主键列补充到 INSERT 的列列表里面
type GeneratedKeyTokenGenerator struct{}

func (GeneratedKeyTokenGenerator) Applies(sc *stmtctx.Context) bool {
	return sc.Statement.Kind == statement.KindInsert && sc.Statement.Insert != nil &&
		sc.KeyColumn != "" && len(sc.GeneratedKeys) > 0
}

func (GeneratedKeyTokenGenerator) Generate(sc *stmtctx.Context, _ *route.Context) ([]Token, error) {
	return []Token{keyColumnToken{
		insertion: insertion{at: sc.Statement.Insert.ColumnsStopIndex},
		column:    sc.KeyColumn,
	}}, nil
}

type keyColumnToken struct {
	insertion
	column string
}

func (k keyColumnToken) Render(route.Unit, []any) (Fragment, error) {
	return Fragment{SQL: ", " + k.column}, nil
}

func (k keyColumnToken) String() string {
	return fmt.Sprintf("keyColumn(%d,%s)", k.at, k.column)
}

// InsertValuesTokenGenerator 每个路由单元只保留路由到它的行
// 需要生成主键的时候在每一行末尾追加一个参数
type InsertValuesTokenGenerator struct{}

func (InsertValuesTokenGenerator) Applies(sc *stmtctx.Context) bool {
	return sc.Statement.Kind == statement.KindInsert && sc.Statement.Insert != nil &&
		len(sc.Statement.Insert.Rows) > 0
}

func (InsertValuesTokenGenerator) Generate(sc *stmtctx.Context, rc *route.Context) ([]Token, error) {
	ins := sc.Statement.Insert
	rows := make(map[string][]int, len(rc.Units))
	for i, u := range rc.Units {
		if i < len(rc.InsertRows) {
			rows[u.Key()] = rc.InsertRows[i]
		}
	}
	return []Token{insertValuesToken{
		span: span{start: ins.ValuesStartIndex(), stop: ins.ValuesStopIndex()},
		stmt: sc.Statement,
		rows: rows,
		keys: sc.GeneratedKeys,
	}}, nil
}

type insertValuesToken struct {
	span
	stmt *statement.Statement
	rows map[string][]int
	keys []any
}

func (t insertValuesToken) Render(unit route.Unit, params []any) (Fragment, error) {
	indexes, ok := t.rows[unit.Key()]
	if !ok {
		return Fragment{}, fmt.Errorf("%w, 路由单元 %s 没有任何数据", errs.ErrInsertFindingDst, unit.Key())
	}
	sql := t.stmt.SQL
	var sb strings.Builder
	args := make([]any, 0, len(params))
	for i, idx := range indexes {
		row := t.stmt.Insert.Rows[idx]
		if i > 0 {
			sb.WriteString(", ")
		}
		for _, p := range t.stmt.ParamIndexesIn(row.StartIndex, row.StopIndex) {
			if p >= len(params) {
				return Fragment{}, errs.NewInvalidParameterIndexError(p, len(params))
			}
			args = append(args, params[p])
		}
		if idx < len(t.keys) {
			// 去掉右括号，追加主键
			sb.WriteString(sql[row.StartIndex:row.StopIndex])
			sb.WriteString(", ?)")
			args = append(args, t.keys[idx])
			continue
		}
		sb.WriteString(sql[row.StartIndex : row.StopIndex+1])
	}
	return Fragment{SQL: sb.String(), Args: args}, nil
}

func (t insertValuesToken) String() string {
	return fmt.Sprintf("insertValues(%d,%d)", t.start, t.stop)
}
