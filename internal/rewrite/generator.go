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
	"math"
	"strconv"
	"strings"

	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/ecodeclub/eshard/statement"
)

// Generator 生成改写 token，各个实现互相独立
type Generator interface {
	Applies(sc *stmtctx.Context) bool
	Generate(sc *stmtctx.Context, rc *route.Context) ([]Token, error)
}

// DefaultGenerators 全部内置的生成器
func DefaultGenerators() []Generator {
	return []Generator{
		TableTokenGenerator{},
		ProjectionsTokenGenerator{},
		PaginationTokenGenerator{},
		GeneratedKeyTokenGenerator{},
		InsertValuesTokenGenerator{},
	}
}

// Generate 运行所有适用的生成器，并且构造排好序的 Tokens
func Generate(generators []Generator, sc *stmtctx.Context, rc *route.Context) (Tokens, error) {
	var tokens []Token
	for _, g := range generators {
		if !g.Applies(sc) {
			continue
		}
		ts, err := g.Generate(sc, rc)
		if err != nil {
			return Tokens{}, err
		}
		tokens = append(tokens, ts...)
	}
	return NewTokens(sc.Statement.SQL, tokens)
}

// TableTokenGenerator 逻辑表名替换成物理表名
type TableTokenGenerator struct{}

func (TableTokenGenerator) Applies(sc *stmtctx.Context) bool {
	return len(sc.Statement.Tables) > 0
}

func (TableTokenGenerator) Generate(sc *stmtctx.Context, _ *route.Context) ([]Token, error) {
	sql := sc.Statement.SQL
	res := make([]Token, 0, len(sc.Statement.Tables))
	for _, t := range sc.Statement.Tables {
		var quote byte
		if t.StartIndex >= 0 && t.StartIndex < len(sql) {
			switch c := sql[t.StartIndex]; c {
			case '`', '"':
				quote = c
			}
		}
		res = append(res, tableToken{
			span:  span{start: t.StartIndex, stop: t.StopIndex},
			logic: t.Name,
			quote: quote,
		})
	}
	return res, nil
}

type tableToken struct {
	span
	logic string
	quote byte
}

func (t tableToken) Render(unit route.Unit, _ []any) (Fragment, error) {
	actual, ok := unit.ActualTable(t.logic)
	if !ok {
		actual = t.logic
	}
	if t.quote != 0 {
		q := string(t.quote)
		return Fragment{SQL: q + actual + q}, nil
	}
	return Fragment{SQL: actual}, nil
}

func (t tableToken) String() string {
	return fmt.Sprintf("table(%d,%d,%s)", t.start, t.stop, t.logic)
}

// ProjectionsTokenGenerator 在投影末尾追加归并需要的派生列
// 只路由到一个单元的时候不需要
type ProjectionsTokenGenerator struct{}

func (ProjectionsTokenGenerator) Applies(sc *stmtctx.Context) bool {
	return sc.Statement.Projections != nil && len(sc.Derived) > 0
}

func (ProjectionsTokenGenerator) Generate(sc *stmtctx.Context, rc *route.Context) ([]Token, error) {
	if rc.IsSingleUnit() {
		return nil, nil
	}
	cols := make([]string, 0, len(sc.Derived))
	for _, d := range sc.Derived {
		cols = append(cols, d.SQL())
	}
	return []Token{projectionsToken{
		insertion: insertion{at: sc.Statement.Projections.StopIndex + 1},
		text:      ", " + strings.Join(cols, ", "),
	}}, nil
}

type projectionsToken struct {
	insertion
	text string
}

func (p projectionsToken) Render(route.Unit, []any) (Fragment, error) {
	return Fragment{SQL: p.text}, nil
}

func (p projectionsToken) String() string {
	return fmt.Sprintf("projections(%d,%s)", p.at, p.text)
}

// PaginationTokenGenerator 每个分片都从 0 开始取 offset + limit 行
// 真正的跳过和截断交给归并
type PaginationTokenGenerator struct{}

func (PaginationTokenGenerator) Applies(sc *stmtctx.Context) bool {
	return sc.Statement.Kind == statement.KindSelect && sc.Statement.Pagination != nil
}

func (PaginationTokenGenerator) Generate(sc *stmtctx.Context, rc *route.Context) ([]Token, error) {
	if rc.IsSingleUnit() {
		return nil, nil
	}
	p := sc.Statement.Pagination
	var res []Token
	if p.Offset != nil {
		res = append(res, offsetToken{
			span:  span{start: p.Offset.StartIndex, stop: p.Offset.StopIndex},
			value: p.Offset,
		})
	}
	if p.RowCount != nil {
		res = append(res, rowCountToken{
			span:   span{start: p.RowCount.StartIndex, stop: p.RowCount.StopIndex},
			offset: p.Offset,
			value:  p.RowCount,
			// 内存分组需要拿到全部数据才能算出正确的结果
			unlimited: sc.HasGrouping() && !sc.GroupByEqualsOrderBy(),
		})
	}
	return res, nil
}

type offsetToken struct {
	span
	value *statement.PaginationValue
}

func (o offsetToken) Render(route.Unit, []any) (Fragment, error) {
	if o.value.IsParam {
		return Fragment{SQL: "?", Args: []any{int64(0)}}, nil
	}
	return Fragment{SQL: "0"}, nil
}

func (o offsetToken) String() string {
	return fmt.Sprintf("offset(%d,%d)", o.start, o.stop)
}

type rowCountToken struct {
	span
	offset    *statement.PaginationValue
	value     *statement.PaginationValue
	unlimited bool
}

func (r rowCountToken) Render(_ route.Unit, params []any) (Fragment, error) {
	var cnt int64 = math.MaxInt64
	if !r.unlimited {
		limit, err := r.value.Resolve(params)
		if err != nil {
			return Fragment{}, err
		}
		var offset int64
		if r.offset != nil {
			offset, err = r.offset.Resolve(params)
			if err != nil {
				return Fragment{}, err
			}
		}
		cnt = limit + offset
		if cnt < limit {
			cnt = math.MaxInt64
		}
	}
	if r.value.IsParam {
		return Fragment{SQL: "?", Args: []any{cnt}}, nil
	}
	return Fragment{SQL: strconv.FormatInt(cnt, 10)}, nil
}

func (r rowCountToken) String() string {
	return fmt.Sprintf("rowCount(%d,%d)", r.start, r.stop)
}
