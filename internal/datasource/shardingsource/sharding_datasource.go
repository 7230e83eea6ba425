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

package shardingsource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/errs"
	"go.uber.org/multierr"
)

var _ datasource.DataSource = &ShardingDataSource{}

// ShardingDataSource 按照 Query.Datasource 把请求转发给对应的数据源
type ShardingDataSource struct {
	sources map[string]datasource.DataSource
}

func (s *ShardingDataSource) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	ds, ok := s.sources[query.Datasource]
	if !ok {
		return nil, errs.NewErrNotFoundTargetDataSource(query.Datasource)
	}
	return ds.Query(ctx, query)
}

func (s *ShardingDataSource) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	ds, ok := s.sources[query.Datasource]
	if !ok {
		return nil, errs.NewErrNotFoundTargetDataSource(query.Datasource)
	}
	return ds.Exec(ctx, query)
}

// Names 所有数据源的名字，按照字典序
func (s *ShardingDataSource) Names() []string {
	res := make([]string, 0, len(s.sources))
	for name := range s.sources {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func NewShardingDataSource(m map[string]datasource.DataSource) *ShardingDataSource {
	return &ShardingDataSource{
		sources: m,
	}
}

func (s *ShardingDataSource) Close() error {
	var err error
	for _, name := range s.Names() {
		if er := s.sources[name].Close(); er != nil {
			err = multierr.Combine(
				err, fmt.Errorf("source name [%s] error: %w", name, er))
		}
	}
	return err
}
