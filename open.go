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
	"database/sql"

	"github.com/ecodeclub/eshard/config"
	"github.com/ecodeclub/eshard/internal/datasource/single"
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/sharding"
	"github.com/golang/glog"
	"go.uber.org/multierr"
)

// OpenEngine 按照配置打开所有的数据源并且创建 Engine
// opts 在配置之后生效，可以覆盖配置里面的值
func OpenEngine(rule *sharding.Rule, cfg config.Config, opts ...EngineOption) (*Engine, error) {
	if rule == nil {
		return nil, errs.NewInvalidRuleError("分片规则不能为 nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := make([]EngineOption, 0, len(cfg.DataSources)+3)
	var err error
	opened := make([]*sql.DB, 0, len(cfg.DataSources))
	for _, dsCfg := range cfg.DataSources {
		dbs, er := openDataSource(dsCfg)
		opened = append(opened, dbs...)
		if er != nil {
			err = er
			break
		}
		if len(dbs) == 1 {
			base = append(base, WithDB(dsCfg.Name, dbs[0]))
			continue
		}
		base = append(base, WithMasterSlaves(dsCfg.Name, dbs[0], dbs[1:]...))
	}
	if err != nil {
		for _, db := range opened {
			err = multierr.Append(err, db.Close())
		}
		return nil, err
	}
	if cfg.PlanCache.Disabled {
		base = append(base, WithoutPlanCache())
	} else {
		base = append(base, WithPlanCache(cfg.PlanCache.MaxEntries, cfg.PlanCache.MaxAge, cfg.PlanCache.SoftValues))
		base = append(base, WithPlanCacheInitialCapacity(cfg.PlanCache.InitialCapacity))
	}
	base = append(base, WithMaxConcurrency(cfg.Executor.MaxConcurrency))
	glog.Infof("eshard: 打开 %d 个数据源，%d 个连接池", len(cfg.DataSources), len(opened))
	return NewEngine(rule, append(base, opts...)...)
}

// openDataSource 第一个是主库，其余是副本
// 出错的时候也会返回已经打开的连接池
func openDataSource(cfg config.DataSource) ([]*sql.DB, error) {
	res := make([]*sql.DB, 0, len(cfg.Replicas)+1)
	for _, dsn := range append([]string{cfg.DSN}, cfg.Replicas...) {
		db, err := single.Open(cfg.Driver, dsn)
		if err != nil {
			return res, err
		}
		res = append(res, db)
	}
	return res, nil
}
