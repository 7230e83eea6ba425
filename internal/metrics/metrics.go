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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 归属于一个 Engine，reg 为 nil 的时候不注册
type Metrics struct {
	PlanCacheHits      prometheus.Counter
	PlanCacheMisses    prometheus.Counter
	PlanCacheEvictions prometheus.Counter
	// UnitsTotal 按照数据源和结果统计执行的路由单元
	UnitsTotal *prometheus.CounterVec
	// ExecuteDuration 一条逻辑语句从扇出到全部返回的耗时
	ExecuteDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PlanCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshard_plan_cache_hits_total",
			Help: "Total number of plan cache hits",
		}),
		PlanCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshard_plan_cache_misses_total",
			Help: "Total number of plan cache misses",
		}),
		PlanCacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "eshard_plan_cache_evictions_total",
			Help: "Total number of evicted plans",
		}),
		UnitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eshard_units_total",
			Help: "Total number of executed route units",
		}, []string{"datasource", "result"}),
		ExecuteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eshard_execute_duration_seconds",
			Help:    "Latency of fanned out statements in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}
