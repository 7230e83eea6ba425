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
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/statement"
	"github.com/golang/glog"
	"github.com/valyala/bytebufferpool"
)

// Unit 可以直接执行的物理 SQL
type Unit struct {
	DataSource string
	SQL        string
	Params     []any
}

// Rewrite 按照 token 改写原始 SQL
// token 之间的原始文本原样拷贝，落在这些文本里面的参数也原样保留，
// token 范围内的参数被 token 渲染出来的参数替换
func Rewrite(stmt *statement.Statement, tokens Tokens, unit route.Unit, params []any) (Unit, error) {
	sql := stmt.SQL
	buffer := bytebufferpool.Get()
	defer bytebufferpool.Put(buffer)

	args := make([]any, 0, len(params))
	markers := stmt.ParameterMarkers
	next := 0
	// copyRange 拷贝 [from, to) 的原始文本和参数
	copyRange := func(from, to int) error {
		_, _ = buffer.WriteString(sql[from:to])
		for next < len(markers) && markers[next] < to {
			if markers[next] >= from {
				if next >= len(params) {
					return errs.NewInvalidParameterIndexError(next, len(params))
				}
				args = append(args, params[next])
			}
			next++
		}
		return nil
	}

	cursor := 0
	for i := 0; i < tokens.Len(); i++ {
		t := tokens.At(i)
		if t.StartIndex() < cursor || t.StopIndex() >= len(sql) {
			return Unit{}, errs.NewTokenRangeError(sql, t.String())
		}
		if err := copyRange(cursor, t.StartIndex()); err != nil {
			return Unit{}, err
		}
		frag, err := t.Render(unit, params)
		if err != nil {
			return Unit{}, err
		}
		_, _ = buffer.WriteString(frag.SQL)
		args = append(args, frag.Args...)
		// 跳过 token 范围内的参数
		for next < len(markers) && markers[next] <= t.StopIndex() {
			next++
		}
		cursor = t.StopIndex() + 1
	}
	if err := copyRange(cursor, len(sql)); err != nil {
		return Unit{}, err
	}
	res := Unit{DataSource: unit.DataSource.Actual, SQL: buffer.String(), Params: args}
	if glog.V(2) {
		glog.Infof("eshard: 改写 %s -> %s: %s %v", sql, res.DataSource, res.SQL, res.Params)
	}
	return res, nil
}

// RewriteAll 每个路由单元一个改写结果，顺序和路由单元一致
func RewriteAll(stmt *statement.Statement, tokens Tokens, rc *route.Context, params []any) ([]Unit, error) {
	res := make([]Unit, 0, len(rc.Units))
	for _, u := range rc.Units {
		ru, err := Rewrite(stmt, tokens, u, params)
		if err != nil {
			return nil, err
		}
		res = append(res, ru)
	}
	return res, nil
}
