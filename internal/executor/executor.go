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

package executor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/metrics"
	"github.com/ecodeclub/eshard/internal/rewrite"
	"github.com/ecodeclub/eshard/internal/rows"
	"github.com/ecodeclub/eshard/statement"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// QueryContext 一个路由单元的执行上下文
type QueryContext struct {
	Kind  statement.Kind
	Query datasource.Query
}

type QueryResult struct {
	// Rows 查询语句的结果
	Rows *sql.Rows
	// Result 增删改语句的结果
	Result sql.Result
	Err    error
}

type HandleFunc func(ctx context.Context, qc *QueryContext) *QueryResult

type Middleware func(next HandleFunc) HandleFunc

// Executor 把改写之后的路由单元并发发送到各个数据源
// 任何一个单元失败，其余单元会被取消，已经拿到的结果集会被关闭
type Executor struct {
	ds          datasource.DataSource
	limit       int
	middlewares []Middleware
	handler     HandleFunc
	metrics     *metrics.Metrics
}

type Option func(e *Executor)

// WithMaxConcurrency 同时执行的路由单元上限，小于等于 0 不限制
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) {
		e.limit = n
	}
}

func WithMiddlewares(ms ...Middleware) Option {
	return func(e *Executor) {
		e.middlewares = append(e.middlewares, ms...)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func New(ds datasource.DataSource, opts ...Option) *Executor {
	e := &Executor{ds: ds}
	for _, opt := range opts {
		opt(e)
	}
	root := e.handle
	for i := len(e.middlewares) - 1; i >= 0; i-- {
		root = e.middlewares[i](root)
	}
	e.handler = root
	return e
}

func (e *Executor) handle(ctx context.Context, qc *QueryContext) *QueryResult {
	if qc.Kind.IsQuery() {
		rs, err := e.ds.Query(ctx, qc.Query)
		return &QueryResult{Rows: rs, Err: err}
	}
	res, err := e.ds.Exec(ctx, qc.Query)
	return &QueryResult{Result: res, Err: err}
}

// Query 返回的结果集和 units 一一对应
// 查询使用的 context 在所有结果集关闭之后才会被取消
func (e *Executor) Query(ctx context.Context, units []rewrite.Unit) ([]rows.Rows, error) {
	defer e.observe(statement.KindSelect, time.Now())
	qctx, cancel := context.WithCancel(ctx)
	res := make([]*sql.Rows, len(units))
	err := e.fanOut(qctx, cancel, statement.KindSelect, units, func(i int, r *QueryResult) {
		res[i] = r.Rows
	})
	if err != nil {
		for _, r := range res {
			if r != nil {
				_ = r.Close()
			}
		}
		cancel()
		return nil, err
	}
	ref := &refCancel{cancel: cancel}
	ref.cnt.Store(int64(len(res)))
	if len(res) == 0 {
		cancel()
	}
	rs := make([]rows.Rows, 0, len(res))
	for _, r := range res {
		rs = append(rs, &cancelRows{Rows: r, ref: ref})
	}
	return rs, nil
}

// Exec 返回的结果和 units 一一对应
func (e *Executor) Exec(ctx context.Context, kind statement.Kind, units []rewrite.Unit) ([]sql.Result, error) {
	defer e.observe(kind, time.Now())
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	res := make([]sql.Result, len(units))
	err := e.fanOut(qctx, cancel, kind, units, func(i int, r *QueryResult) {
		res[i] = r.Result
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Executor) fanOut(ctx context.Context, cancel context.CancelFunc, kind statement.Kind,
	units []rewrite.Unit, collect func(i int, r *QueryResult)) error {
	var (
		eg errgroup.Group

		// 先记下第一个错误再取消，被取消的单元返回的 context.Canceled 不能覆盖它
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}
	if e.limit > 0 {
		eg.SetLimit(e.limit)
	}
	for i, u := range units {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r := e.handler(ctx, &QueryContext{
				Kind: kind,
				Query: datasource.Query{
					SQL:        u.SQL,
					Args:       u.Params,
					Datasource: u.DataSource,
				},
			})
			e.count(u.DataSource, r.Err)
			if r.Err != nil {
				// 第一个失败的单元取消其余的单元
				fail(r.Err)
				return r.Err
			}
			collect(i, r)
			return nil
		})
	}
	err := eg.Wait()
	if firstErr != nil {
		err = firstErr
	}
	if err != nil && errors.Is(err, context.Canceled) {
		glog.Warningf("eshard: %s 语句被取消: %v", kind, err)
	}
	return err
}

func (e *Executor) count(ds string, err error) {
	if e.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	e.metrics.UnitsTotal.WithLabelValues(ds, result).Inc()
}

func (e *Executor) observe(kind statement.Kind, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ExecuteDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
}

// refCancel 最后一个结果集关闭的时候取消查询的 context
type refCancel struct {
	cnt    atomic.Int64
	cancel context.CancelFunc
}

func (r *refCancel) release() {
	if r.cnt.Add(-1) == 0 {
		r.cancel()
	}
}

type cancelRows struct {
	*sql.Rows
	ref  *refCancel
	once sync.Once
}

func (c *cancelRows) Close() error {
	err := c.Rows.Close()
	c.once.Do(c.ref.release)
	return err
}
