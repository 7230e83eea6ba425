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

package groupbymerger

import (
	"context"
	"sort"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/aggregatemerger/aggregator"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"github.com/gotomicro/ekit/mapx"
	"go.uber.org/multierr"
)

// ColumnInfo 分组列或者排序列
type ColumnInfo struct {
	Index int
	Order utils.Order
}

// Key 分组键
type Key struct {
	columnValues []any
}

func newKey(row []any, groupColumns []ColumnInfo) Key {
	key := Key{columnValues: make([]any, 0, len(groupColumns))}
	for _, col := range groupColumns {
		key.columnValues = append(key.columnValues, utils.Normalize(row[col.Index]))
	}
	return key
}

func compareKey(a, b Key) int {
	for i := 0; i < len(a.columnValues); i++ {
		if res := utils.Compare(a.columnValues[i], b.columnValues[i], utils.ASC); res != 0 {
			return res
		}
	}
	return 0
}

// AggregatorMerger 内存分组
// 把所有结果集读完，按照分组键聚合，输出顺序是分组第一次出现的顺序，
// 有 ORDER BY 的时候再在内存里面排序
type AggregatorMerger struct {
	aggregators  []aggregator.Aggregator
	groupColumns []ColumnInfo
	orderColumns []ColumnInfo
}

func NewAggregatorMerger(aggregators []aggregator.Aggregator, groupColumns []ColumnInfo,
	orderColumns ...ColumnInfo) *AggregatorMerger {
	return &AggregatorMerger{
		aggregators:  aggregators,
		groupColumns: groupColumns,
		orderColumns: orderColumns,
	}
}

// Merge 该实现会全部拿取results里面的数据，之后关闭所有的结果集
func (a *AggregatorMerger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cols, err := merger.CheckColumns(results)
	if err != nil {
		return nil, err
	}
	colTypes, err := results[0].ColumnTypes()
	if err != nil {
		return nil, err
	}
	data, err := a.group(ctx, results)
	closeErr := closeAll(results)
	if err != nil {
		return nil, multierr.Append(err, closeErr)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	if len(a.orderColumns) > 0 {
		sortRows(data, a.orderColumns)
	}
	return rows.NewDataRows(data, cols, colTypes), nil
}

func (a *AggregatorMerger) group(ctx context.Context, results []rows.Rows) ([][]any, error) {
	treeMap, err := mapx.NewTreeMap[Key, *aggregator.Group](compareKey)
	if err != nil {
		return nil, err
	}
	// treeMap 只负责查找，keys 记录分组第一次出现的顺序
	keys := make([]Key, 0, 16)
	for _, res := range results {
		for res.Next() {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			row, err := utils.Scan(res)
			if err != nil {
				return nil, err
			}
			key := newKey(row, a.groupColumns)
			if g, ok := treeMap.Get(key); ok {
				if err = g.Merge(row); err != nil {
					return nil, err
				}
				continue
			}
			g, err := aggregator.NewGroup(a.aggregators, row)
			if err != nil {
				return nil, err
			}
			if err = treeMap.Put(key, g); err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		if res.Err() != nil {
			return nil, res.Err()
		}
	}
	data := make([][]any, 0, len(keys))
	for _, key := range keys {
		g, _ := treeMap.Get(key)
		data = append(data, g.Row())
	}
	return data, nil
}

func sortRows(data [][]any, orderColumns []ColumnInfo) {
	sort.SliceStable(data, func(i, j int) bool {
		for _, col := range orderColumns {
			res := utils.Compare(data[i][col.Index], data[j][col.Index], col.Order)
			if res != 0 {
				return res < 0
			}
		}
		return false
	})
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
