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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecodeclub/eshard/config"
	"github.com/ecodeclub/eshard/internal/test"
	"github.com/ecodeclub/eshard/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEngine(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.Config
		wantErr string
		check   func(t *testing.T, e *Engine)
	}{
		{
			name: "sqlite",
			cfg: config.Config{
				DataSources: []config.DataSource{
					{Name: "ds_0", Driver: "sqlite3", DSN: "file:open_ds_0?mode=memory&cache=shared"},
					{
						Name:     "ds_1",
						Driver:   "sqlite3",
						DSN:      "file:open_ds_1?mode=memory&cache=shared",
						Replicas: []string{"file:open_ds_1?mode=memory&cache=shared"},
					},
				},
				PlanCache: config.PlanCache{MaxEntries: 8},
				Executor:  config.Executor{MaxConcurrency: 2},
			},
			check: func(t *testing.T, e *Engine) {
				assert.NotNil(t, e.cache)
				assert.NotNil(t, e.executor)
				assert.Len(t, e.sources, 2)
			},
		},
		{
			name: "缓存初始容量",
			cfg: config.Config{
				PlanCache: config.PlanCache{MaxEntries: 64, InitialCapacity: 8},
			},
			check: func(t *testing.T, e *Engine) {
				require.NotNil(t, e.cache)
				assert.Equal(t, 8, e.cache.Capacity())
			},
		},
		{
			name: "关闭缓存",
			cfg: config.Config{
				PlanCache: config.PlanCache{Disabled: true},
			},
			check: func(t *testing.T, e *Engine) {
				assert.Nil(t, e.cache)
				assert.Nil(t, e.executor)
			},
		},
		{
			name: "错误的 DSN",
			cfg: config.Config{
				DataSources: []config.DataSource{
					{Name: "ds_0", Driver: "sqlite3", DSN: "file:open_bad?mode=memory&cache=shared"},
					{Name: "ds_1", Driver: "mysql", DSN: "root:root@tcp(localhost:3306"},
				},
			},
			wantErr: "eshard: 不正确的 DSN root:root@tcp(localhost:3306",
		},
		{
			name: "错误的副本",
			cfg: config.Config{
				DataSources: []config.DataSource{
					{Name: "ds_0", Driver: "mysql", DSN: "root:root@tcp(localhost:3306)/ds_0", Replicas: []string{"bad"}},
				},
			},
			wantErr: "eshard: 不正确的 DSN bad",
		},
		{
			name: "配置校验失败",
			cfg: config.Config{
				DataSources: []config.DataSource{{Name: "ds_0", Driver: "oracle"}},
			},
			wantErr: "eshard: 不支持driver类型 oracle",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := OpenEngine(test.ShardingRule(), tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, e)
			assert.NoError(t, e.Close())
		})
	}

	_, err := OpenEngine(nil, config.Config{})
	assert.Error(t, err)
}

func TestEngine_MasterSlaves(t *testing.T) {
	masterDB, master, err := sqlmock.New()
	require.NoError(t, err)
	slaveDB, slave, err := sqlmock.New()
	require.NoError(t, err)
	e, err := NewEngine(test.OrderRule(), WithMasterSlaves("ds_0", masterDB, slaveDB))
	require.NoError(t, err)
	defer func() {
		_ = e.Close()
	}()

	slave.ExpectQuery("SELECT `name` FROM `t_user`").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("slave"))
	master.ExpectQuery("SELECT `name` FROM `t_user`").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("master"))
	master.ExpectExec("UPDATE `t_user`").WillReturnResult(sqlmock.NewResult(0, 1))

	sel := Request{
		Statement: test.Select("SELECT `name` FROM `t_user`").Table("`t_user`", "").
			Projections(test.ColumnProjection("name")).Build(),
	}
	testCases := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{name: "默认读副本", ctx: context.Background(), want: "slave"},
		{name: "强制读主库", ctx: UseMaster(context.Background()), want: "master"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := e.Query(tc.ctx, sel)
			require.NoError(t, err)
			require.True(t, rs.Next())
			var name string
			require.NoError(t, rs.Scan(&name))
			assert.Equal(t, tc.want, name)
			assert.NoError(t, rs.Close())
		})
	}

	res := e.Exec(context.Background(), Request{
		Statement: test.Update("UPDATE `t_user` SET `name` = ?").Table("`t_user`", "").
			Set(statement.Assignment{Column: test.Col("name"), Value: test.Param(0)}).Build(),
		Params: []any{"Tom"},
	})
	require.NoError(t, res.Err())
	assert.NoError(t, master.ExpectationsWereMet())
	assert.NoError(t, slave.ExpectationsWereMet())
}
