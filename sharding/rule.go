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

package sharding

import (
	"strings"

	"github.com/ecodeclub/eshard/internal/errs"
)

// RuleConfig 分片规则的配置，NewRule 校验之后得到不可变的 Rule
type RuleConfig struct {
	Tables []TableRuleConfig
	// BindingGroups 每一组里面的表按照相同的下标分片
	BindingGroups [][]string
	// BroadcastTables 在每一个数据源上都有完整副本的表
	BroadcastTables []string
	// SingleTables 逻辑表 -> 所在的数据源
	SingleTables map[string]string
	// DefaultDatabaseStrategy 和 DefaultTableStrategy 在表没有配置策略的时候使用
	DefaultDatabaseStrategy Strategy
	DefaultTableStrategy    Strategy
	// DefaultDataSource 没有配置的表都会路由到这里
	DefaultDataSource string
	// DataSources 所有的数据源，为空的时候从数据节点推导
	DataSources []string
}

// TableRuleConfig 单个分片表的配置
type TableRuleConfig struct {
	LogicTable string
	// ActualDataNodes 行表达式，例如 ds_${0..1}.t_order_${0..3}
	// 为空的时候每一个数据源上都有一张同名表
	ActualDataNodes   string
	DatabaseStrategy  Strategy
	TableStrategy     Strategy
	KeyGenerateColumn string
	KeyGenerator      KeyGenerator
}

// DataNode 一张物理表
type DataNode struct {
	DataSource string
	Table      string
}

// TableRule 校验之后的分片表规则
type TableRule struct {
	LogicTable        string
	DataNodes         []DataNode
	DatabaseStrategy  Strategy
	TableStrategy     Strategy
	KeyGenerateColumn string
	KeyGenerator      KeyGenerator

	dataSources []string
	tables      map[string][]string
}

// DataSources 按照配置顺序返回该表涉及的数据源
func (t *TableRule) DataSources() []string {
	return t.dataSources
}

// ActualTables 返回某个数据源上的物理表，保持配置顺序
func (t *TableRule) ActualTables(ds string) []string {
	return t.tables[ds]
}

// TableIndex 物理表在数据源内的下标，找不到返回 -1
func (t *TableRule) TableIndex(ds, table string) int {
	for i, tbl := range t.tables[ds] {
		if tbl == table {
			return i
		}
	}
	return -1
}

// ShardingColumns 数据源维度和表维度的所有分片列
func (t *TableRule) ShardingColumns() []string {
	cols := make([]string, 0, 2)
	for _, s := range []Strategy{t.DatabaseStrategy, t.TableStrategy} {
		for _, c := range s.ShardingColumns() {
			if !containsFold(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// IsShardingColumn 判断 column 是不是该表的分片列
func (t *TableRule) IsShardingColumn(column string) bool {
	return containsFold(t.ShardingColumns(), column)
}

// Rule 分片规则，构造之后不可变，可以被多个 goroutine 共享
type Rule struct {
	tables            map[string]*TableRule
	bindingGroups     map[string][]string
	broadcast         map[string]struct{}
	singleTables      map[string]string
	dataSources       []string
	defaultDataSource string
}

// NewRule 校验配置并且构造 Rule
func NewRule(cfg RuleConfig) (*Rule, error) {
	r := &Rule{
		tables:            make(map[string]*TableRule, len(cfg.Tables)),
		bindingGroups:     make(map[string][]string, 4),
		broadcast:         make(map[string]struct{}, len(cfg.BroadcastTables)),
		singleTables:      make(map[string]string, len(cfg.SingleTables)),
		defaultDataSource: cfg.DefaultDataSource,
	}
	dbDefault := cfg.DefaultDatabaseStrategy
	if dbDefault == nil {
		dbDefault = NoneStrategy{}
	}
	tblDefault := cfg.DefaultTableStrategy
	if tblDefault == nil {
		tblDefault = NoneStrategy{}
	}
	r.dataSources = append(r.dataSources, cfg.DataSources...)
	declared := len(cfg.DataSources) > 0

	for _, tc := range cfg.Tables {
		tr, err := newTableRule(tc, cfg.DataSources, dbDefault, tblDefault)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(tr.LogicTable)
		if _, ok := r.tables[key]; ok {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 重复配置", tr.LogicTable)
		}
		for _, ds := range tr.dataSources {
			if containsFold(r.dataSources, ds) {
				continue
			}
			if declared {
				return nil, errs.NewInvalidRuleError("逻辑表 %s 使用了未声明的数据源 %s", tr.LogicTable, ds)
			}
			r.dataSources = append(r.dataSources, ds)
		}
		r.tables[key] = tr
	}

	if cfg.DefaultDataSource != "" && !containsFold(r.dataSources, cfg.DefaultDataSource) {
		if declared {
			return nil, errs.NewInvalidRuleError("默认数据源 %s 未声明", cfg.DefaultDataSource)
		}
		r.dataSources = append(r.dataSources, cfg.DefaultDataSource)
	}

	for tbl, ds := range cfg.SingleTables {
		key := strings.ToLower(tbl)
		if _, ok := r.tables[key]; ok {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 不能既是分片表又是单表", tbl)
		}
		if !containsFold(r.dataSources, ds) {
			return nil, errs.NewInvalidRuleError("单表 %s 使用了未声明的数据源 %s", tbl, ds)
		}
		r.singleTables[key] = ds
	}

	for _, tbl := range cfg.BroadcastTables {
		key := strings.ToLower(tbl)
		if _, ok := r.tables[key]; ok {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 不能既是分片表又是广播表", tbl)
		}
		if _, ok := r.singleTables[key]; ok {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 不能既是单表又是广播表", tbl)
		}
		r.broadcast[key] = struct{}{}
	}
	if len(r.broadcast) > 0 && len(r.dataSources) == 0 {
		return nil, errs.NewInvalidRuleError("配置了广播表但是没有任何数据源")
	}

	for _, group := range cfg.BindingGroups {
		if err := r.addBindingGroup(group); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Rule) addBindingGroup(group []string) error {
	if len(group) < 2 {
		return errs.NewInvalidRuleError("绑定表组 %v 至少需要两张表", group)
	}
	var first *TableRule
	for _, tbl := range group {
		key := strings.ToLower(tbl)
		tr, ok := r.tables[key]
		if !ok {
			return errs.NewInvalidRuleError("绑定表 %s 不是分片表", tbl)
		}
		if _, ok = r.bindingGroups[key]; ok {
			return errs.NewInvalidRuleError("绑定表 %s 出现在多个绑定表组里", tbl)
		}
		if first == nil {
			first = tr
		} else if !sameShape(first, tr) {
			return errs.NewInvalidRuleError("绑定表 %s 和 %s 的数据节点分布不一致", first.LogicTable, tr.LogicTable)
		}
		r.bindingGroups[key] = group
	}
	return nil
}

func sameShape(a, b *TableRule) bool {
	if len(a.dataSources) != len(b.dataSources) {
		return false
	}
	for i, ds := range a.dataSources {
		if b.dataSources[i] != ds || len(a.tables[ds]) != len(b.tables[ds]) {
			return false
		}
	}
	return true
}

func newTableRule(tc TableRuleConfig, dataSources []string, dbDefault, tblDefault Strategy) (*TableRule, error) {
	if tc.LogicTable == "" {
		return nil, errs.NewInvalidRuleError("逻辑表名不能为空")
	}
	tr := &TableRule{
		LogicTable:        tc.LogicTable,
		DatabaseStrategy:  tc.DatabaseStrategy,
		TableStrategy:     tc.TableStrategy,
		KeyGenerateColumn: tc.KeyGenerateColumn,
		KeyGenerator:      tc.KeyGenerator,
		tables:            make(map[string][]string, 4),
	}
	if tr.DatabaseStrategy == nil {
		tr.DatabaseStrategy = dbDefault
	}
	if tr.TableStrategy == nil {
		tr.TableStrategy = tblDefault
	}
	if err := validateStrategy(tc.LogicTable, tr.DatabaseStrategy); err != nil {
		return nil, err
	}
	if err := validateStrategy(tc.LogicTable, tr.TableStrategy); err != nil {
		return nil, err
	}
	if tr.KeyGenerateColumn != "" && tr.KeyGenerator == nil {
		return nil, errs.NewInvalidRuleError("逻辑表 %s 配置了主键列 %s 但是没有主键生成器", tc.LogicTable, tc.KeyGenerateColumn)
	}

	if tc.ActualDataNodes == "" {
		if len(dataSources) == 0 {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 没有数据节点", tc.LogicTable)
		}
		for _, ds := range dataSources {
			tr.addNode(DataNode{DataSource: ds, Table: tc.LogicTable})
		}
		return tr, nil
	}
	nodes, err := ExpandInline(tc.ActualDataNodes)
	if err != nil {
		return nil, errs.NewInvalidRuleError("逻辑表 %s 的数据节点: %v", tc.LogicTable, err)
	}
	for _, n := range nodes {
		ds, tbl, ok := strings.Cut(n, ".")
		if !ok || ds == "" || tbl == "" {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 的数据节点 %s 格式不正确", tc.LogicTable, n)
		}
		if tr.TableIndex(ds, tbl) >= 0 {
			return nil, errs.NewInvalidRuleError("逻辑表 %s 的数据节点 %s 重复", tc.LogicTable, n)
		}
		tr.addNode(DataNode{DataSource: ds, Table: tbl})
	}
	return tr, nil
}

func (t *TableRule) addNode(n DataNode) {
	if _, ok := t.tables[n.DataSource]; !ok {
		t.dataSources = append(t.dataSources, n.DataSource)
	}
	t.tables[n.DataSource] = append(t.tables[n.DataSource], n.Table)
	t.DataNodes = append(t.DataNodes, n)
}

func validateStrategy(table string, s Strategy) error {
	switch st := s.(type) {
	case NoneStrategy:
		return nil
	case StandardStrategy:
		if st.Column == "" || st.Precise == nil {
			return errs.NewInvalidRuleError("逻辑表 %s 的标准分片策略缺少分片列或者精确分片算法", table)
		}
	case ComplexStrategy:
		if len(st.Columns) == 0 || st.Algorithm == nil {
			return errs.NewInvalidRuleError("逻辑表 %s 的复合分片策略缺少分片列或者算法", table)
		}
	case HintStrategy:
		if st.Algorithm == nil {
			return errs.NewInvalidRuleError("逻辑表 %s 的 Hint 分片策略缺少算法", table)
		}
	default:
		return errs.NewInvalidRuleError("逻辑表 %s 使用了未知的分片策略 %T", table, s)
	}
	return nil
}

// TableRule 查找分片表
func (r *Rule) TableRule(logicTable string) (*TableRule, bool) {
	tr, ok := r.tables[strings.ToLower(logicTable)]
	return tr, ok
}

// IsBroadcast 是否是广播表
func (r *Rule) IsBroadcast(logicTable string) bool {
	_, ok := r.broadcast[strings.ToLower(logicTable)]
	return ok
}

// SingleDataSource 单表所在的数据源
// 没有显式配置的表会落到默认数据源
func (r *Rule) SingleDataSource(logicTable string) (string, bool) {
	key := strings.ToLower(logicTable)
	if ds, ok := r.singleTables[key]; ok {
		return ds, true
	}
	if _, ok := r.tables[key]; ok {
		return "", false
	}
	if _, ok := r.broadcast[key]; ok {
		return "", false
	}
	if r.defaultDataSource != "" {
		return r.defaultDataSource, true
	}
	return "", false
}

// BindingGroup 返回表所在的绑定表组
func (r *Rule) BindingGroup(logicTable string) ([]string, bool) {
	g, ok := r.bindingGroups[strings.ToLower(logicTable)]
	return g, ok
}

// DataSources 全部数据源，保持配置顺序
func (r *Rule) DataSources() []string {
	return r.dataSources
}

// ShardingColumns 逻辑表的分片列，非分片表返回 nil
func (r *Rule) ShardingColumns(logicTable string) []string {
	tr, ok := r.TableRule(logicTable)
	if !ok {
		return nil
	}
	return tr.ShardingColumns()
}

func containsFold(src []string, s string) bool {
	for _, v := range src {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
