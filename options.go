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
	"time"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/datasource/masterslave"
	"github.com/ecodeclub/eshard/internal/datasource/masterslave/slaves/roundrobin"
	"github.com/ecodeclub/eshard/internal/datasource/single"
	"github.com/ecodeclub/eshard/internal/executor"
	"github.com/prometheus/client_golang/prometheus"
)

type EngineOption func(e *Engine)

// WithDB 注册一个数据源，name 必须和分片规则里面的数据源名字一致
// Engine.Close 会关闭该数据源
func WithDB(name string, db *sql.DB) EngineOption {
	return func(e *Engine) {
		e.addSource(name, single.NewDB(db))
	}
}

// WithMasterSlaves 注册一个带有只读副本的数据源，查询轮询副本，写语句发往主库
// 使用 UseMaster 可以让查询也发往主库
func WithMasterSlaves(name string, master *sql.DB, replicas ...*sql.DB) EngineOption {
	return func(e *Engine) {
		e.addSource(name, newMasterSlaves(master, replicas))
	}
}

func newMasterSlaves(master *sql.DB, replicas []*sql.DB) *masterslave.MasterSlavesDB {
	if len(replicas) == 0 {
		return masterslave.NewMasterSlavesDB(master)
	}
	return masterslave.NewMasterSlavesDB(master,
		masterslave.MasterSlavesWithSlaves(roundrobin.NewSlaves(replicas...)))
}

// UseMaster 该 ctx 上的查询全部发往主库
func UseMaster(ctx context.Context) context.Context {
	return masterslave.UseMaster(ctx)
}

// WithPlanCache 设置执行计划缓存
func WithPlanCache(maxEntries int, maxAge time.Duration, softValues bool) EngineOption {
	return func(e *Engine) {
		e.cacheOpts.MaxEntries = maxEntries
		e.cacheOpts.MaxAge = maxAge
		e.cacheOpts.SoftValues = softValues
	}
}

// WithPlanCacheInitialCapacity 执行计划缓存的初始容量，写满之后翻倍
func WithPlanCacheInitialCapacity(n int) EngineOption {
	return func(e *Engine) {
		e.cacheOpts.InitialCapacity = n
	}
}

// WithoutPlanCache 每次都重新路由
func WithoutPlanCache() EngineOption {
	return func(e *Engine) {
		e.cacheOff = true
	}
}

// WithMaxConcurrency 同一条语句最多同时执行多少个路由单元
func WithMaxConcurrency(n int) EngineOption {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, executor.WithMaxConcurrency(n))
	}
}

func WithMiddlewares(ms ...Middleware) EngineOption {
	return func(e *Engine) {
		e.execOpts = append(e.execOpts, executor.WithMiddlewares(ms...))
	}
}

// WithRegisterer 指标注册到 reg 上，默认不注册
func WithRegisterer(reg prometheus.Registerer) EngineOption {
	return func(e *Engine) {
		e.registerer = reg
	}
}

func (e *Engine) addSource(name string, ds datasource.DataSource) {
	if e.sources == nil {
		e.sources = make(map[string]datasource.DataSource, 4)
	}
	e.sources[name] = ds
}
