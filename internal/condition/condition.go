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

package condition

import (
	"strings"

	"github.com/ecodeclub/eshard/sharding"
	"github.com/ecodeclub/eshard/statement"
)

type Operator uint8

const (
	OpEqual Operator = iota
	OpIn
	OpBetween
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "EQUAL"
	case OpIn:
		return "IN"
	default:
		return "BETWEEN"
	}
}

// ShardingCondition 一个分片列上的条件
// BETWEEN 的时候 Values 只有两个元素，分别是下界和上界
type ShardingCondition struct {
	Table    string
	Column   string
	Operator Operator
	Values   []any
}

// Extract 从 WHERE 里面提取分片条件
// 只处理顶层 AND 连接的 =、IN、BETWEEN，
// OR、NOT、子查询以及无法在路由阶段确定值的谓词都会被忽略，只会让路由变宽
func Extract(stmt *statement.Statement, params []any, rule *sharding.Rule) []ShardingCondition {
	if stmt == nil || stmt.Where == nil || rule == nil {
		return nil
	}
	owners := newOwnerResolver(stmt, rule)
	var res []ShardingCondition
	for _, e := range conjuncts(stmt.Where, nil) {
		switch ex := e.(type) {
		case statement.Comparison:
			if ex.Op != statement.OpEQ {
				continue
			}
			val, ok := statement.ResolveValue(ex.Value, params)
			if !ok {
				continue
			}
			res = owners.appendConditions(res, ex.Column, OpEqual, []any{val})
		case statement.In:
			if ex.Not || len(ex.Values) == 0 {
				continue
			}
			vals, ok := resolveAll(ex.Values, params)
			if !ok {
				continue
			}
			res = owners.appendConditions(res, ex.Column, OpIn, vals)
		case statement.Between:
			if ex.Not {
				continue
			}
			vals, ok := resolveAll([]statement.Expr{ex.Low, ex.High}, params)
			if !ok {
				continue
			}
			res = owners.appendConditions(res, ex.Column, OpBetween, vals)
		}
	}
	return res
}

// ExtractInsert 每一行 VALUES 单独提取分片条件
// generatedKeys 不为空的时候，下标和行对齐，作为主键列的值参与分片
func ExtractInsert(stmt *statement.Statement, params []any, rule *sharding.Rule, keyColumn string, generatedKeys []any) [][]ShardingCondition {
	if stmt == nil || stmt.Insert == nil || len(stmt.Tables) == 0 || rule == nil {
		return nil
	}
	table := stmt.Tables[0].Name
	cols := rule.ShardingColumns(table)
	res := make([][]ShardingCondition, len(stmt.Insert.Rows))
	for i, row := range stmt.Insert.Rows {
		var conds []ShardingCondition
		for j, col := range stmt.Insert.Columns {
			if j >= len(row.Values) || !containsFold(cols, col) {
				continue
			}
			val, ok := statement.ResolveValue(row.Values[j], params)
			if !ok {
				continue
			}
			conds = append(conds, ShardingCondition{Table: table, Column: col, Operator: OpEqual, Values: []any{val}})
		}
		if i < len(generatedKeys) && containsFold(cols, keyColumn) {
			conds = append(conds, ShardingCondition{
				Table: table, Column: keyColumn, Operator: OpEqual, Values: []any{generatedKeys[i]},
			})
		}
		res[i] = conds
	}
	return res
}

func conjuncts(e statement.Expr, dst []statement.Expr) []statement.Expr {
	if and, ok := e.(statement.And); ok {
		dst = conjuncts(and.Left, dst)
		return conjuncts(and.Right, dst)
	}
	return append(dst, e)
}

func resolveAll(exprs []statement.Expr, params []any) ([]any, bool) {
	vals := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, ok := statement.ResolveValue(e, params)
		if !ok {
			return nil, false
		}
		vals = append(vals, v)
	}
	return vals, true
}

// ownerResolver 把列的 owner 解析成逻辑表
type ownerResolver struct {
	rule   *sharding.Rule
	owners map[string]string
	tables []string
}

func newOwnerResolver(stmt *statement.Statement, rule *sharding.Rule) ownerResolver {
	r := ownerResolver{
		rule:   rule,
		owners: make(map[string]string, len(stmt.Tables)*2),
		tables: stmt.TableNames(),
	}
	for _, t := range stmt.Tables {
		r.owners[strings.ToLower(t.Name)] = t.Name
	}
	// 别名优先于表名
	for _, t := range stmt.Tables {
		if t.Alias != "" {
			r.owners[strings.ToLower(t.Alias)] = t.Name
		}
	}
	return r
}

func (r ownerResolver) appendConditions(dst []ShardingCondition, col statement.ColumnRef, op Operator, vals []any) []ShardingCondition {
	var candidates []string
	if col.Owner != "" {
		tbl, ok := r.owners[strings.ToLower(col.Owner)]
		if !ok {
			return dst
		}
		candidates = []string{tbl}
	} else {
		candidates = r.tables
	}
	for _, tbl := range candidates {
		if !containsFold(r.rule.ShardingColumns(tbl), col.Name) {
			continue
		}
		dst = append(dst, ShardingCondition{Table: tbl, Column: col.Name, Operator: op, Values: vals})
	}
	return dst
}

func containsFold(src []string, s string) bool {
	for _, v := range src {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
