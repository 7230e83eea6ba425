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

package querylog

import (
	"context"

	"github.com/ecodeclub/eshard"
	"github.com/golang/glog"
)

// MiddlewareBuilder 记录每一条发往数据源的物理 SQL
type MiddlewareBuilder struct {
	logFunc func(ds string, sql string, args ...any)
	// logErr 为 true 的时候额外记录执行失败的 SQL
	logErr bool
}

func NewBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logFunc: func(ds string, sql string, args ...any) {
			glog.Infof("eshard: [%s] %s %v", ds, sql, args)
		},
	}
}

func (b *MiddlewareBuilder) LogFunc(logFunc func(ds string, sql string, args ...any)) *MiddlewareBuilder {
	b.logFunc = logFunc
	return b
}

func (b *MiddlewareBuilder) LogErr(logErr bool) *MiddlewareBuilder {
	b.logErr = logErr
	return b
}

func (b *MiddlewareBuilder) Build() eshard.Middleware {
	return func(next eshard.HandleFunc) eshard.HandleFunc {
		return func(ctx context.Context, qc *eshard.QueryContext) *eshard.QueryResult {
			query := qc.Query
			b.logFunc(query.Datasource, query.SQL, query.Args...)
			res := next(ctx, qc)
			if b.logErr && res.Err != nil {
				glog.Errorf("eshard: [%s] %s 执行失败: %v", query.Datasource, query.SQL, res.Err)
			}
			return res
		}
	}
}
