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

package plancache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ecodeclub/eshard/sharding"
	"github.com/ecodeclub/eshard/statement"
)

// Key 执行计划的缓存键
// Fingerprint 是 SQL 文本的哈希，token 是按照位置寻址的，所以不做任何归一化
// Shape 描述参数的类型、影响路由的参数值以及 Hint
// 相等比较用的是完整的 SQL 和参数描述，哈希只用于日志
type Key struct {
	SchemaVersion uint64
	Fingerprint   uint64
	Shape         uint64

	sql   string
	shape string
}

// NewKey 计算缓存键
func NewKey(version uint64, stmt *statement.Statement, params []any, rule *sharding.Rule, hint *sharding.Hint) Key {
	var sb strings.Builder
	for _, p := range params {
		_, _ = fmt.Fprintf(&sb, "%T;", p)
	}
	sb.WriteString("|")
	for _, idx := range RoutingParams(stmt, rule) {
		if idx < len(params) {
			_, _ = fmt.Fprintf(&sb, "%d=%#v;", idx, params[idx])
		}
	}
	sb.WriteString("|")
	writeHint(&sb, hint)
	shape := sb.String()
	return Key{
		SchemaVersion: version,
		Fingerprint:   xxhash.Sum64String(stmt.SQL),
		Shape:         xxhash.Sum64String(shape),
		sql:           stmt.SQL,
		shape:         shape,
	}
}

func writeHint(sb *strings.Builder, hint *sharding.Hint) {
	if hint.IsEmpty() {
		return
	}
	sb.WriteString(hint.DataSource)
	for _, m := range []map[string][]any{hint.DatabaseValues, hint.TableValues} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(sb, "|%s=%#v", strings.ToLower(k), m[k])
		}
		sb.WriteString("#")
	}
}

// RoutingParams 可能影响路由结果的参数下标
// 任何和分片列比较的参数都算进去，多算只会降低命中率，不会影响正确性
func RoutingParams(stmt *statement.Statement, rule *sharding.Rule) []int {
	cols := make(map[string]struct{}, 4)
	for _, t := range stmt.Tables {
		for _, c := range rule.ShardingColumns(t.Name) {
			cols[strings.ToLower(c)] = struct{}{}
		}
	}
	if len(cols) == 0 {
		return nil
	}
	isSharding := func(col string) bool {
		_, ok := cols[strings.ToLower(col)]
		return ok
	}
	var res []int
	var walk func(e statement.Expr)
	walk = func(e statement.Expr) {
		switch ex := e.(type) {
		case statement.And:
			walk(ex.Left)
			walk(ex.Right)
		case statement.Or:
			walk(ex.Left)
			walk(ex.Right)
		case statement.Not:
			walk(ex.Expr)
		case statement.Comparison:
			if isSharding(ex.Column.Name) {
				res = appendParam(res, ex.Value)
			}
		case statement.In:
			if isSharding(ex.Column.Name) {
				for _, v := range ex.Values {
					res = appendParam(res, v)
				}
			}
		case statement.Between:
			if isSharding(ex.Column.Name) {
				res = appendParam(res, ex.Low)
				res = appendParam(res, ex.High)
			}
		}
	}
	if stmt.Where != nil {
		walk(stmt.Where)
	}
	if stmt.Insert != nil {
		for j, col := range stmt.Insert.Columns {
			if !isSharding(col) {
				continue
			}
			for _, row := range stmt.Insert.Rows {
				if j < len(row.Values) {
					res = appendParam(res, row.Values[j])
				}
			}
		}
	}
	sort.Ints(res)
	return res
}

func appendParam(dst []int, e statement.Expr) []int {
	if p, ok := e.(statement.Param); ok {
		return append(dst, p.Index)
	}
	return dst
}
