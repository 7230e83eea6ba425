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

package route

import (
	"fmt"

	"github.com/ecodeclub/eshard/internal/condition"
	"github.com/ecodeclub/eshard/internal/errs"
)

// routeInsert 每一行单独路由，每一行必须恰好落到一张物理表上
func (e *Engine) routeInsert(req Request) (*Context, error) {
	stmt := req.Statement
	if len(stmt.Tables) == 0 {
		return nil, errs.ErrEmptyStatement
	}
	if stmt.Insert == nil || len(stmt.Insert.Rows) == 0 {
		return nil, errs.ErrInsertWithoutValues
	}
	table := stmt.Tables[0].Name
	tr, ok := e.rule.TableRule(table)
	if !ok {
		return e.routeInsertUnsharded(req, table)
	}
	if len(req.GeneratedKeys) > 0 && len(req.GeneratedKeys) != len(stmt.Insert.Rows) {
		return nil, fmt.Errorf("eshard: 生成的主键数量 %d 和行数 %d 不一致", len(req.GeneratedKeys), len(stmt.Insert.Rows))
	}
	rowConds := condition.ExtractInsert(stmt, req.Params, e.rule, tr.KeyGenerateColumn, req.GeneratedKeys)
	res := &Context{InsertRows: make([][]int, 0, 4)}
	for i, conds := range rowConds {
		parts, err := e.routeGroup([]string{table}, conds, req.Hint)
		if err != nil {
			return nil, err
		}
		if len(parts) != 1 {
			return nil, fmt.Errorf("%w, 第 %d 行路由到了 %d 张表", errs.ErrInsertFindingDst, i, len(parts))
		}
		res.add(Unit{
			DataSource: DataSourceMapping{Logic: parts[0].ds, Actual: parts[0].ds},
			Tables:     parts[0].tables,
		}, i)
	}
	return res, nil
}

func (e *Engine) routeInsertUnsharded(req Request, table string) (*Context, error) {
	var singleDS string
	if !e.rule.IsBroadcast(table) {
		ds, ok := e.rule.SingleDataSource(table)
		if !ok {
			return nil, errs.NewNoTargetFoundError(table, "没有分片规则也没有默认数据源")
		}
		singleDS = ds
	}
	parts := e.routeUnsharded(req.Statement, singleDS, req.Hint)
	if len(parts) == 0 {
		return nil, errs.NewNoTargetFoundError(table, "没有可用的数据源")
	}
	rows := make([]int, len(req.Statement.Insert.Rows))
	for i := range rows {
		rows[i] = i
	}
	res := &Context{InsertRows: make([][]int, 0, len(parts))}
	for _, p := range parts {
		res.add(Unit{
			DataSource: DataSourceMapping{Logic: p.ds, Actual: p.ds},
			Tables:     []TableMapping{{Logic: table, Actual: table}},
		}, append([]int(nil), rows...)...)
	}
	return res, nil
}
