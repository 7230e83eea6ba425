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
	"strings"

	"github.com/ecodeclub/eshard/internal/condition"
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/sharding"
	"github.com/ecodeclub/eshard/statement"
	"github.com/golang/glog"
	"github.com/gotomicro/ekit/slice"
)

// Request 一次路由需要的全部输入，路由是这些输入的纯函数
type Request struct {
	Statement *statement.Statement
	Params    []any
	Hint      *sharding.Hint
	// GeneratedKeys INSERT 语句预先生成的主键，和 VALUES 的行对齐
	GeneratedKeys []any
}

type Engine struct {
	rule *sharding.Rule
}

func NewEngine(rule *sharding.Rule) *Engine {
	return &Engine{rule: rule}
}

func (e *Engine) Route(req Request) (*Context, error) {
	stmt := req.Statement
	if stmt == nil {
		return nil, errs.ErrEmptyStatement
	}
	var (
		res *Context
		err error
	)
	if stmt.Kind == statement.KindInsert {
		res, err = e.routeInsert(req)
	} else {
		if stmt.Kind == statement.KindUpdate {
			if err = e.checkAssignments(stmt); err != nil {
				return nil, err
			}
		}
		res, err = e.routeStatement(req)
	}
	if err != nil {
		return nil, err
	}
	if glog.V(2) {
		glog.Infof("eshard: 路由 %s 得到 %d 个单元", stmt.SQL, len(res.Units))
	}
	return res, nil
}

// checkAssignments 不允许更新分片列，否则数据会落到错误的分片上
func (e *Engine) checkAssignments(stmt *statement.Statement) error {
	owners := make(map[string]string, len(stmt.Tables)*2)
	for _, t := range stmt.Tables {
		owners[strings.ToLower(t.Name)] = t.Name
		if t.Alias != "" {
			owners[strings.ToLower(t.Alias)] = t.Name
		}
	}
	for _, a := range stmt.Assignments {
		tables := stmt.TableNames()
		if a.Column.Owner != "" {
			tbl, ok := owners[strings.ToLower(a.Column.Owner)]
			if !ok {
				continue
			}
			tables = []string{tbl}
		}
		for _, tbl := range tables {
			tr, ok := e.rule.TableRule(tbl)
			if ok && tr.IsShardingColumn(a.Column.Name) {
				return errs.NewErrUpdateShardingKeyUnsupported(a.Column.Name)
			}
		}
	}
	return nil
}

// part 一组表在某个数据源上的一种选择
type part struct {
	ds     string
	tables []TableMapping
}

func (e *Engine) routeStatement(req Request) (*Context, error) {
	stmt := req.Statement
	tables := stmt.TableNames()
	if len(tables) == 0 {
		return e.routeNoTable(req)
	}

	var (
		sharded   []string
		broadcast []string
		singleDS  string
		singles   []string
	)
	for _, tbl := range tables {
		if _, ok := e.rule.TableRule(tbl); ok {
			sharded = append(sharded, tbl)
			continue
		}
		if e.rule.IsBroadcast(tbl) {
			broadcast = append(broadcast, tbl)
			continue
		}
		ds, ok := e.rule.SingleDataSource(tbl)
		if !ok {
			return nil, errs.NewNoTargetFoundError(tbl, "没有分片规则也没有默认数据源")
		}
		if singleDS != "" && singleDS != ds {
			return nil, errs.NewNoTargetFoundError(tbl,
				fmt.Sprintf("单表分布在不同的数据源 %s 和 %s 上", singleDS, ds))
		}
		singleDS = ds
		singles = append(singles, tbl)
	}
	if req.Hint != nil && req.Hint.DataSource != "" {
		if singleDS != "" && singleDS != req.Hint.DataSource {
			return nil, errs.NewNoTargetFoundError(singles[0],
				fmt.Sprintf("单表所在数据源 %s 和强制路由的数据源 %s 不一致", singleDS, req.Hint.DataSource))
		}
	}

	var parts []part
	if len(sharded) > 0 {
		conds := condition.Extract(stmt, req.Params, e.rule)
		var err error
		parts, err = e.routeSharded(sharded, conds, req.Hint)
		if err != nil {
			return nil, err
		}
		if singleDS != "" {
			parts = filterParts(parts, singleDS)
			if len(parts) == 0 {
				return nil, errs.NewNoTargetFoundError(singles[0],
					fmt.Sprintf("分片表没有路由到单表所在的数据源 %s", singleDS))
			}
		}
	} else {
		parts = e.routeUnsharded(stmt, singleDS, req.Hint)
		if len(parts) == 0 {
			return nil, errs.NewNoTargetFoundError(tables[0], "没有可用的数据源")
		}
	}

	res := &Context{}
	for _, p := range parts {
		mappings := p.tables
		for _, tbl := range singles {
			mappings = append(mappings, TableMapping{Logic: tbl, Actual: tbl})
		}
		for _, tbl := range broadcast {
			mappings = append(mappings, TableMapping{Logic: tbl, Actual: tbl})
		}
		res.add(Unit{
			DataSource: DataSourceMapping{Logic: p.ds, Actual: p.ds},
			Tables:     orderMappings(tables, mappings),
		})
	}
	return res, nil
}

// routeUnsharded 只有单表和广播表
// 有单表的时候路由到单表所在数据源，只有广播表的时候读一个、写全部
func (e *Engine) routeUnsharded(stmt *statement.Statement, singleDS string, hint *sharding.Hint) []part {
	if singleDS != "" {
		return []part{{ds: singleDS}}
	}
	if hint != nil && hint.DataSource != "" {
		return []part{{ds: hint.DataSource}}
	}
	all := e.rule.DataSources()
	if len(all) == 0 {
		return nil
	}
	if stmt.Kind.IsQuery() {
		return []part{{ds: all[0]}}
	}
	res := make([]part, 0, len(all))
	for _, ds := range all {
		res = append(res, part{ds: ds})
	}
	return res
}

func (e *Engine) routeNoTable(req Request) (*Context, error) {
	ds := ""
	if req.Hint != nil && req.Hint.DataSource != "" {
		ds = req.Hint.DataSource
	} else if all := e.rule.DataSources(); len(all) > 0 {
		ds, _ = e.rule.SingleDataSource("")
		if ds == "" {
			ds = all[0]
		}
	}
	if ds == "" {
		return nil, errs.NewNoTargetFoundError("", "没有可用的数据源")
	}
	return &Context{Units: []Unit{{DataSource: DataSourceMapping{Logic: ds, Actual: ds}}}}, nil
}

// routeSharded 绑定表组只路由主表，其余分片组在共同的数据源上做笛卡尔积
func (e *Engine) routeSharded(sharded []string, conds []condition.ShardingCondition,
	hint *sharding.Hint) ([]part, error) {
	groups := e.bindingGroups(sharded)
	var (
		res     []part
		commons []string
	)
	for i, group := range groups {
		gp, err := e.routeGroup(group, conds, hint)
		if err != nil {
			return nil, err
		}
		dss := partDataSources(gp)
		if i == 0 {
			res = gp
			commons = dss
			continue
		}
		commons = slice.IntersectSetFunc(commons, dss, func(src, dst string) bool {
			return src == dst
		})
		if len(commons) == 0 {
			return nil, errs.NewNoTargetFoundError(group[0], "和其它分片表没有共同的数据源")
		}
		res = cartesian(res, gp, commons)
	}
	return res, nil
}

func cartesian(left, right []part, commons []string) []part {
	res := make([]part, 0, len(left))
	for _, l := range left {
		if !contains(commons, l.ds) {
			continue
		}
		for _, r := range right {
			if r.ds != l.ds {
				continue
			}
			tables := make([]TableMapping, 0, len(l.tables)+len(r.tables))
			tables = append(tables, l.tables...)
			tables = append(tables, r.tables...)
			res = append(res, part{ds: l.ds, tables: tables})
		}
	}
	return res
}

// bindingGroups 按照语句中出现的顺序分组，第一个出现的表是主表
func (e *Engine) bindingGroups(sharded []string) [][]string {
	var groups [][]string
	index := make(map[string]int, len(sharded))
	for _, tbl := range sharded {
		members, ok := e.rule.BindingGroup(tbl)
		if !ok {
			groups = append(groups, []string{tbl})
			continue
		}
		key := strings.ToLower(members[0])
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], tbl)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []string{tbl})
	}
	return groups
}

// routeGroup 先路由主表，绑定表按照主表在数据源内的下标取物理表
func (e *Engine) routeGroup(group []string, conds []condition.ShardingCondition,
	hint *sharding.Hint) ([]part, error) {
	primary, _ := e.rule.TableRule(group[0])
	groupConds := bindConditions(primary, group, conds)

	dsTargets := primary.DataSources()
	var (
		dsSel []string
		err   error
	)
	if hint != nil && hint.DataSource != "" {
		if !contains(dsTargets, hint.DataSource) {
			return nil, errs.NewNoTargetFoundError(primary.LogicTable,
				fmt.Sprintf("强制路由的数据源 %s 不在数据节点中", hint.DataSource))
		}
		dsSel = []string{hint.DataSource}
	} else {
		dsSel, err = evaluate(primary.LogicTable, primary.DatabaseStrategy, dsTargets, groupConds,
			hintValues(hint, primary.LogicTable, true))
		if err != nil {
			return nil, err
		}
	}

	res := make([]part, 0, len(dsSel))
	for _, ds := range dsSel {
		tblSel, err := evaluate(primary.LogicTable, primary.TableStrategy, primary.ActualTables(ds), groupConds,
			hintValues(hint, primary.LogicTable, false))
		if err != nil {
			return nil, err
		}
		for _, actual := range tblSel {
			idx := primary.TableIndex(ds, actual)
			mappings := make([]TableMapping, 0, len(group))
			mappings = append(mappings, TableMapping{Logic: group[0], Actual: actual})
			for _, bound := range group[1:] {
				tr, _ := e.rule.TableRule(bound)
				tables := tr.ActualTables(ds)
				if idx >= len(tables) {
					return nil, errs.NewNoTargetFoundError(bound,
						fmt.Sprintf("绑定表在数据源 %s 上没有下标为 %d 的物理表", ds, idx))
				}
				mappings = append(mappings, TableMapping{Logic: bound, Actual: tables[idx]})
			}
			res = append(res, part{ds: ds, tables: mappings})
		}
	}
	return res, nil
}

// bindConditions 绑定表上的条件同样可以用来路由主表
func bindConditions(primary *sharding.TableRule, group []string,
	conds []condition.ShardingCondition) []condition.ShardingCondition {
	res := make([]condition.ShardingCondition, 0, len(conds))
	for _, c := range conds {
		if strings.EqualFold(c.Table, primary.LogicTable) {
			res = append(res, c)
			continue
		}
		for _, bound := range group[1:] {
			if strings.EqualFold(c.Table, bound) && primary.IsShardingColumn(c.Column) {
				c.Table = primary.LogicTable
				res = append(res, c)
				break
			}
		}
	}
	return res
}

func hintValues(hint *sharding.Hint, table string, database bool) []any {
	if hint == nil {
		return nil
	}
	src := hint.TableValues
	if database {
		src = hint.DatabaseValues
	}
	for k, v := range src {
		if strings.EqualFold(k, table) {
			return v
		}
	}
	return nil
}

func partDataSources(parts []part) []string {
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if !contains(res, p.ds) {
			res = append(res, p.ds)
		}
	}
	return res
}

func filterParts(parts []part, ds string) []part {
	res := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.ds == ds {
			res = append(res, p)
		}
	}
	return res
}

// orderMappings 按照表在语句中出现的顺序排列
func orderMappings(tables []string, mappings []TableMapping) []TableMapping {
	res := make([]TableMapping, 0, len(mappings))
	for _, tbl := range tables {
		for _, m := range mappings {
			if strings.EqualFold(m.Logic, tbl) {
				res = append(res, m)
				break
			}
		}
	}
	return res
}
