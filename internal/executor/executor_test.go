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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/datasource/shardingsource"
	"github.com/ecodeclub/eshard/internal/datasource/single"
	"github.com/ecodeclub/eshard/internal/metrics"
	"github.com/ecodeclub/eshard/internal/rewrite"
	"github.com/ecodeclub/eshard/statement"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type ExecutorSuite struct {
	suite.Suite
	mockDB0 *sql.DB
	mock0   sqlmock.Sqlmock
	mockDB1 *sql.DB
	mock1   sqlmock.Sqlmock
	ds      datasource.DataSource
}

func (s *ExecutorSuite) SetupTest() {
	t := s.T()
	var err error
	s.mockDB0, s.mock0, err = sqlmock.New()
	require.NoError(t, err)
	s.mockDB1, s.mock1, err = sqlmock.New()
	require.NoError(t, err)
	s.ds = shardingsource.NewShardingDataSource(map[string]datasource.DataSource{
		"ds_0": single.NewDB(s.mockDB0),
		"ds_1": single.NewDB(s.mockDB1),
	})
}

func (s *ExecutorSuite) TearDownTest() {
	_ = s.mockDB0.Close()
	_ = s.mockDB1.Close()
}

func (s *ExecutorSuite) TestQuery() {
	t := s.T()
	s.mock0.ExpectQuery("SELECT (.+) FROM `t_order_0`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	s.mock1.ExpectQuery("SELECT (.+) FROM `t_order_1`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	var (
		mu   sync.Mutex
		ctxs []context.Context
	)
	capture := func(next HandleFunc) HandleFunc {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			mu.Lock()
			ctxs = append(ctxs, ctx)
			mu.Unlock()
			return next(ctx, qc)
		}
	}
	e := New(s.ds, WithMiddlewares(capture))
	rs, err := e.Query(context.Background(), []rewrite.Unit{
		{DataSource: "ds_0", SQL: "SELECT `id` FROM `t_order_0`"},
		{DataSource: "ds_1", SQL: "SELECT `id` FROM `t_order_1`"},
	})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	require.Len(t, ctxs, 2)

	// 结果集和路由单元一一对应
	for i, r := range rs {
		require.True(t, r.Next())
		var id int64
		require.NoError(t, r.Scan(&id))
		assert.Equal(t, int64(i+1), id)
	}

	require.NoError(t, rs[0].Close())
	assert.NoError(t, ctxs[0].Err())
	// 重复关闭不会提前取消
	require.NoError(t, rs[0].Close())
	assert.NoError(t, ctxs[0].Err())
	require.NoError(t, rs[1].Close())
	assert.ErrorIs(t, ctxs[0].Err(), context.Canceled)
}

func (s *ExecutorSuite) TestQuery_Failed() {
	t := s.T()
	s.mock0.ExpectQuery("SELECT (.+) FROM `t_order_0`").
		WillReturnError(errors.New("mock error"))
	s.mock1.ExpectQuery("SELECT (.+) FROM `t_order_1`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	e := New(s.ds)
	rs, err := e.Query(context.Background(), []rewrite.Unit{
		{DataSource: "ds_0", SQL: "SELECT `id` FROM `t_order_0`"},
		{DataSource: "ds_1", SQL: "SELECT `id` FROM `t_order_1`"},
	})
	assert.EqualError(t, err, "mock error")
	assert.Nil(t, rs)
}

func (s *ExecutorSuite) TestQuery_Empty() {
	t := s.T()
	e := New(s.ds)
	rs, err := e.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func (s *ExecutorSuite) TestExec() {
	t := s.T()
	s.mock0.ExpectExec("UPDATE `t_order_0`").WillReturnResult(sqlmock.NewResult(0, 2))
	s.mock1.ExpectExec("UPDATE `t_order_1`").WillReturnResult(sqlmock.NewResult(0, 5))

	e := New(s.ds)
	res, err := e.Exec(context.Background(), statement.KindUpdate, []rewrite.Unit{
		{DataSource: "ds_0", SQL: "UPDATE `t_order_0` SET `amount` = ?", Params: []any{1}},
		{DataSource: "ds_1", SQL: "UPDATE `t_order_1` SET `amount` = ?", Params: []any{1}},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	for i, want := range []int64{2, 5} {
		affected, err := res[i].RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, want, affected)
	}
}

func (s *ExecutorSuite) TestExec_UnknownDataSource() {
	t := s.T()
	e := New(s.ds)
	_, err := e.Exec(context.Background(), statement.KindDelete, []rewrite.Unit{
		{DataSource: "ds_9", SQL: "DELETE FROM `t_order_0`"},
	})
	assert.Error(t, err)
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, &ExecutorSuite{})
}

func TestExecutor_NoLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery("SELECT (.+)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	e := New(single.NewDB(db))
	rs, err := e.Query(context.Background(), []rewrite.Unit{
		{SQL: "SELECT `id` FROM `t_order_0`"},
		{SQL: "SELECT `id` FROM `t_order_1`"},
	})
	require.NoError(t, err)
	for _, r := range rs {
		for r.Next() {
		}
		require.NoError(t, r.Close())
	}
	require.NoError(t, db.Close())
}

// stub 不访问数据源，直接返回结果
func stub(fn func(ctx context.Context, qc *QueryContext) *QueryResult) Middleware {
	return func(_ HandleFunc) HandleFunc {
		return fn
	}
}

func TestExecutor_MiddlewareOrder(t *testing.T) {
	var logs []string
	trace := func(name string) Middleware {
		return func(next HandleFunc) HandleFunc {
			return func(ctx context.Context, qc *QueryContext) *QueryResult {
				logs = append(logs, name+" before")
				res := next(ctx, qc)
				logs = append(logs, name+" after")
				return res
			}
		}
	}
	e := New(nil, WithMiddlewares(trace("m1"), trace("m2")),
		WithMiddlewares(stub(func(ctx context.Context, qc *QueryContext) *QueryResult {
			logs = append(logs, qc.Query.Datasource)
			return &QueryResult{Result: sqlmock.NewResult(0, 1)}
		})))
	_, err := e.Exec(context.Background(), statement.KindInsert, []rewrite.Unit{
		{DataSource: "ds_0", SQL: "INSERT INTO `t_order_0` VALUES (?)"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1 before", "m2 before", "ds_0", "m2 after", "m1 after"}, logs)
}

func TestExecutor_WithMaxConcurrency(t *testing.T) {
	testCases := []struct {
		name  string
		limit int
		check func(t *testing.T, max int64)
	}{
		{
			name:  "限制为 1",
			limit: 1,
			check: func(t *testing.T, max int64) {
				assert.Equal(t, int64(1), max)
			},
		},
		{
			name:  "限制为 2",
			limit: 2,
			check: func(t *testing.T, max int64) {
				assert.LessOrEqual(t, max, int64(2))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cur, max atomic.Int64
			e := New(nil, WithMaxConcurrency(tc.limit),
				WithMiddlewares(stub(func(ctx context.Context, qc *QueryContext) *QueryResult {
					n := cur.Add(1)
					for {
						m := max.Load()
						if n <= m || max.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					cur.Add(-1)
					return &QueryResult{Result: sqlmock.NewResult(0, 1)}
				})))
			units := make([]rewrite.Unit, 6)
			res, err := e.Exec(context.Background(), statement.KindDelete, units)
			require.NoError(t, err)
			assert.Len(t, res, 6)
			tc.check(t, max.Load())
		})
	}
}

func TestExecutor_FailFast(t *testing.T) {
	newExecutor := func(canceled *atomic.Bool) *Executor {
		entered := make(chan struct{}, 4)
		return New(nil, WithMiddlewares(stub(func(ctx context.Context, qc *QueryContext) *QueryResult {
			if qc.Query.Datasource == "ds_0" {
				// 至少有一个单元在执行的时候才失败
				<-entered
				return &QueryResult{Err: errors.New("mock error")}
			}
			entered <- struct{}{}
			select {
			case <-ctx.Done():
				canceled.Store(true)
				return &QueryResult{Err: ctx.Err()}
			case <-time.After(time.Second):
				return &QueryResult{Result: sqlmock.NewResult(0, 1)}
			}
		})))
	}
	// 被取消的单元可能比失败的单元先返回，结果必须是真正的错误
	for i := 0; i < 100; i++ {
		var canceled atomic.Bool
		_, err := newExecutor(&canceled).Exec(context.Background(), statement.KindUpdate, []rewrite.Unit{
			{DataSource: "ds_0"},
			{DataSource: "ds_1"},
			{DataSource: "ds_2"},
			{DataSource: "ds_3"},
		})
		require.EqualError(t, err, "mock error")
		assert.True(t, canceled.Load())
	}

	var canceled atomic.Bool
	rs, err := newExecutor(&canceled).Query(context.Background(), []rewrite.Unit{
		{DataSource: "ds_1"},
		{DataSource: "ds_0"},
	})
	assert.EqualError(t, err, "mock error")
	assert.Nil(t, rs)
	assert.True(t, canceled.Load())
}

func TestExecutor_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(nil, WithMiddlewares(stub(func(ctx context.Context, qc *QueryContext) *QueryResult {
		cancel()
		<-ctx.Done()
		return &QueryResult{Err: ctx.Err()}
	})))
	_, err := e.Exec(ctx, statement.KindUpdate, []rewrite.Unit{{DataSource: "ds_0"}})
	assert.Equal(t, context.Canceled, err)
}

func TestExecutor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := New(nil, WithMetrics(m),
		WithMiddlewares(stub(func(ctx context.Context, qc *QueryContext) *QueryResult {
			if qc.Query.Datasource == "ds_1" {
				time.Sleep(20 * time.Millisecond)
				return &QueryResult{Err: errors.New("mock error")}
			}
			return &QueryResult{Result: sqlmock.NewResult(0, 1)}
		})))
	_, err := e.Exec(context.Background(), statement.KindUpdate, []rewrite.Unit{
		{DataSource: "ds_0"},
		{DataSource: "ds_1"},
	})
	assert.EqualError(t, err, "mock error")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnitsTotal.WithLabelValues("ds_0", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnitsTotal.WithLabelValues("ds_1", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExecuteDuration))
}
