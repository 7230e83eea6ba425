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

package aggregatemerger

import (
	"context"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/aggregatemerger/aggregator"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"go.uber.org/multierr"
)

// Merger 没有 GROUP BY 的聚合查询
// 每个分片只返回一行，所有分片的结果聚合成一行
type Merger struct {
	aggregators []aggregator.Aggregator
}

func NewMerger(aggregators ...aggregator.Aggregator) *Merger {
	return &Merger{
		aggregators: aggregators,
	}
}

func (m *Merger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(m.aggregators) == 0 {
		return nil, errs.ErrMergerEmptyAggregations
	}
	cols, err := merger.CheckColumns(results)
	if err != nil {
		return nil, err
	}
	colTypes, err := results[0].ColumnTypes()
	if err != nil {
		return nil, err
	}
	data, err := m.aggregate(ctx, results)
	closeErr := closeAll(results)
	if err != nil {
		return nil, multierr.Append(err, closeErr)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return rows.NewDataRows(data, cols, colTypes), nil
}

func (m *Merger) aggregate(ctx context.Context, results []rows.Rows) ([][]any, error) {
	var g *aggregator.Group
	for _, r := range results {
		for r.Next() {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			row, err := utils.Scan(r)
			if err != nil {
				return nil, err
			}
			if g == nil {
				g, err = aggregator.NewGroup(m.aggregators, row)
			} else {
				err = g.Merge(row)
			}
			if err != nil {
				return nil, err
			}
		}
		if r.Err() != nil {
			return nil, r.Err()
		}
	}
	if g == nil {
		return nil, nil
	}
	return [][]any{g.Row()}, nil
}

func closeAll(results []rows.Rows) error {
	errorList := make([]error, 0, len(results))
	for _, r := range results {
		if err := r.Close(); err != nil {
			errorList = append(errorList, err)
		}
	}
	return multierr.Combine(errorList...)
}
