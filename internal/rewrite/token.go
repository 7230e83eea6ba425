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
	"sort"

	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/internal/route"
)

// Fragment 渲染之后的片段，Args 替换掉片段范围内原有的参数
type Fragment struct {
	SQL  string
	Args []any
}

// Token 基于位置的改写指令
// StartIndex 和 StopIndex 都是闭区间，插入型的 token StopIndex = StartIndex - 1
type Token interface {
	StartIndex() int
	StopIndex() int
	Render(unit route.Unit, params []any) (Fragment, error)
	fmt.Stringer
}

// Tokens 按照起始位置排好序的 token，构造之后不可修改
type Tokens struct {
	items []Token
}

// NewTokens 排序并且检查重叠和越界
func NewTokens(sql string, tokens []Token) (Tokens, error) {
	items := make([]Token, len(tokens))
	copy(items, tokens)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartIndex() < items[j].StartIndex()
	})
	for i, t := range items {
		if t.StartIndex() < 0 || t.StopIndex() >= len(sql) || t.StopIndex() < t.StartIndex()-1 ||
			t.StartIndex() > len(sql) {
			return Tokens{}, errs.NewTokenRangeError(sql, t.String())
		}
		if i > 0 && t.StartIndex() <= items[i-1].StopIndex() {
			return Tokens{}, errs.NewTokenOverlapError(sql, describe(items), i)
		}
	}
	return Tokens{items: items}, nil
}

func (t Tokens) Len() int {
	return len(t.items)
}

func (t Tokens) At(i int) Token {
	return t.items[i]
}

func describe(tokens []Token) []string {
	res := make([]string, 0, len(tokens))
	for _, t := range tokens {
		res = append(res, t.String())
	}
	return res
}

// insertion 在 StartIndex 之前插入内容，不替换任何原有字符
type insertion struct {
	at int
}

func (i insertion) StartIndex() int {
	return i.at
}

func (i insertion) StopIndex() int {
	return i.at - 1
}

// span 替换 [start, stop] 的内容
type span struct {
	start int
	stop  int
}

func (s span) StartIndex() int {
	return s.start
}

func (s span) StopIndex() int {
	return s.stop
}
