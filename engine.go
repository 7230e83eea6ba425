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

package eshard

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/datasource/shardingsource"
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/internal/executor"
	mergeengine "github.com/ecodeclub/eshard/internal/merger/engine"
	"github.com/ecodeclub/eshard/internal/metrics"
	"github.com/ecodeclub/eshard/internal/plancache"
	"github.com/ecodeclub/eshard/internal/rewrite"
	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/ecodeclub/eshard/sharding"
	"github.com/ecodeclub/eshard/statement"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Request 一条已经解析、绑定好的逻辑语句
type Request struct {
	Statement *statement.Statement
	Params    []any
	// Hint 可选，显式指定分片值或者数据源
	Hint *sharding.Hint
}

// Plan 一条逻辑语句的执行计划
// Units 可以交给任何执行器执行，执行的结果再交给 Engine.Merge
type Plan struct {
	Units   []RewriteUnit
	context *stmtctx.Context
	params  []any
}

// IsQuery 是否需要归并结果集
func (p *Plan) IsQuery() bool {
	return p.context.Statement.Kind.IsQuery()
}

type ruleState struct {
	rule   *sharding.Rule
	router *route.Engine
}

// Engine 分片的入口：路由、改写、（可选）执行，以及结果归并
// Engine 是并发安全的
type Engine struct {
	state    atomic.Pointer[ruleState]
	cache    *plancache.Cache
	executor *executor.Executor
	ds       datasource.DataSource

	cacheOpts  plancache.Options
	cacheOff   bool
	execOpts   []executor.Option
	sources    map[string]datasource.DataSource
	metrics    *metrics.Metrics
	registerer prometheus.Registerer
}

func NewEngine(rule *sharding.Rule, opts ...EngineOption) (*Engine, error) {
	if rule == nil {
		return nil, errs.NewInvalidRuleError("分片规则不能为 nil")
	}
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = metrics.New(e.registerer)
	e.state.Store(newRuleState(rule))
	if !e.cacheOff {
		cache, err := plancache.New(e.cacheOpts, e.metrics)
		if err != nil {
			return nil, multierr.Append(err, e.closeSources())
		}
		e.cache = cache
	}
	if len(e.sources) > 0 {
		e.ds = shardingsource.NewShardingDataSource(e.sources)
		e.executor = executor.New(e.ds, append(e.execOpts, executor.WithMetrics(e.metrics))...)
	}
	return e, nil
}

func newRuleState(rule *sharding.Rule) *ruleState {
	return &ruleState{rule: rule, router: route.NewEngine(rule)}
}

// Reload 替换分片规则，缓存的执行计划全部失效
func (e *Engine) Reload(rule *sharding.Rule) error {
	if rule == nil {
		return errs.NewInvalidRuleError("分片规则不能为 nil")
	}
	e.state.Store(newRuleState(rule))
	if e.cache != nil {
		e.cache.Purge()
	}
	return nil
}

// Rule 当前使用的分片规则
func (e *Engine) Rule() *sharding.Rule {
	return e.state.Load().rule
}

// Plan 路由并且改写一条逻辑语句
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	stmt := req.Statement
	if stmt == nil {
		return nil, errs.ErrEmptyStatement
	}
	// 先读版本再读规则，保证旧规则算出来的计划不会出现在新版本下
	var version uint64
	if e.cache != nil {
		version = e.cache.Version()
	}
	st := e.state.Load()
	keyColumn, keys, err := st.generateKeys(stmt)
	if err != nil {
		return nil, err
	}
	var p *plancache.Plan
	if e.cache == nil || len(keys) > 0 {
		// 每次生成的主键都不一样，不能缓存
		p, err = st.compute(req, keyColumn, keys)
	} else {
		key := plancache.NewKey(version, stmt, req.Params, st.rule, req.Hint)
		p, err = e.cache.Get(key, func() (*plancache.Plan, error) {
			return st.compute(req, "", nil)
		})
	}
	if err != nil {
		return nil, err
	}
	units, err := rewrite.RewriteAll(stmt, p.Tokens, p.Route, req.Params)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Units:   units,
		context: p.Context,
		params:  req.Params,
	}, nil
}

func (s *ruleState) compute(req Request, keyColumn string, keys []any) (*plancache.Plan, error) {
	rc, err := s.router.Route(route.Request{
		Statement:     req.Statement,
		Params:        req.Params,
		Hint:          req.Hint,
		GeneratedKeys: keys,
	})
	if err != nil {
		return nil, err
	}
	sc := stmtctx.New(req.Statement)
	if len(keys) > 0 {
		sc = sc.WithGeneratedKeys(keyColumn, keys)
	}
	tokens, err := rewrite.Generate(rewrite.DefaultGenerators(), sc, rc)
	if err != nil {
		return nil, err
	}
	return &plancache.Plan{Context: sc, Route: rc, Tokens: tokens}, nil
}

// generateKeys INSERT 没有给出主键列并且配置了主键生成器的时候，为每一行生成主键
func (s *ruleState) generateKeys(stmt *statement.Statement) (string, []any, error) {
	if stmt.Kind != statement.KindInsert || stmt.Insert == nil || len(stmt.Tables) == 0 {
		return "", nil, nil
	}
	tr, ok := s.rule.TableRule(stmt.Tables[0].Name)
	if !ok || tr.KeyGenerateColumn == "" {
		return "", nil, nil
	}
	if stmt.Insert.ColumnIndex(tr.KeyGenerateColumn) >= 0 {
		return "", nil, nil
	}
	if tr.KeyGenerator == nil {
		return "", nil, errs.ErrKeyGeneratorNotConfigured
	}
	keys := make([]any, 0, len(stmt.Insert.Rows))
	for range stmt.Insert.Rows {
		key, err := tr.KeyGenerator.NextKey()
		if err != nil {
			return "", nil, err
		}
		keys = append(keys, key)
	}
	return tr.KeyGenerateColumn, keys, nil
}

// Merge 归并各个路由单元的结果集，results 的顺序必须和 Plan.Units 一致
func (e *Engine) Merge(ctx context.Context, p *Plan, results []Rows) (MergedRows, error) {
	if !p.IsQuery() {
		return nil, errs.ErrPlanNotQuery
	}
	return mergeengine.Merge(ctx, p.context, p.params, results)
}

// MergeResults 汇总增删改语句在各个路由单元上的结果
func (*Engine) MergeResults(results []sql.Result) sharding.Result {
	return sharding.NewResult(results)
}

// Query 执行查询并且归并结果，需要通过 WithDataSource 配置数据源
func (e *Engine) Query(ctx context.Context, req Request) (MergedRows, error) {
	if e.executor == nil {
		return nil, errs.ErrExecutorNotConfigured
	}
	p, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	if !p.IsQuery() {
		return nil, errs.ErrPlanNotQuery
	}
	rs, err := e.executor.Query(ctx, p.Units)
	if err != nil {
		return nil, err
	}
	res, err := e.Merge(ctx, p, rs)
	if err != nil {
		for _, r := range rs {
			_ = r.Close()
		}
		return nil, err
	}
	return res, nil
}

// Exec 执行增删改语句
func (e *Engine) Exec(ctx context.Context, req Request) sharding.Result {
	var res sharding.Result
	if e.executor == nil {
		return res.SetErr(errs.ErrExecutorNotConfigured)
	}
	p, err := e.Plan(ctx, req)
	if err != nil {
		return res.SetErr(err)
	}
	if p.IsQuery() {
		return res.SetErr(errs.ErrPlanIsQuery)
	}
	results, err := e.executor.Exec(ctx, req.Statement.Kind, p.Units)
	if err != nil {
		return res.SetErr(err)
	}
	return e.MergeResults(results)
}

// Close 关闭通过 Engine 打开的数据源
func (e *Engine) Close() error {
	if e.ds != nil {
		return e.ds.Close()
	}
	return nil
}

func (e *Engine) closeSources() error {
	var err error
	for _, ds := range e.sources {
		err = multierr.Append(err, ds.Close())
	}
	return err
}
