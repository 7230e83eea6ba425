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

// Package engine 根据语句上下文选择归并器
package engine

import (
	"context"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/aggregatemerger"
	"github.com/ecodeclub/eshard/internal/merger/aggregatemerger/aggregator"
	"github.com/ecodeclub/eshard/internal/merger/batchmerger"
	"github.com/ecodeclub/eshard/internal/merger/groupbymerger"
	"github.com/ecodeclub/eshard/internal/merger/pagedmerger"
	"github.com/ecodeclub/eshard/internal/merger/sortmerger"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/ecodeclub/eshard/statement"
	"go.uber.org/multierr"
)

// Merge 把各个路由单元的结果集归并成一个
// 只有一个结果集的时候不做任何处理，SQL 没有被改写过
func Merge(ctx context.Context, sc *stmtctx.Context, params []any, results []rows.Rows) (merger.Rows, error) {
	if len(results) == 1 && results[0] != nil {
		return batchmerger.Merger{}.Merge(ctx, results)
	}
	m, visible, err := Build(sc, params, results)
	if err != nil {
		return nil, multierr.Append(err, closeAll(results))
	}
	rs, err := m.Merge(ctx, results)
	if err != nil {
		return nil, err
	}
	return newVisibleRows(rs, visible)
}

// Build 根据结果集的列选择归并器，返回归并器和用户可见的列数
func Build(sc *stmtctx.Context, params []any, results []rows.Rows) (merger.Merger, int, error) {
	cols, err := merger.CheckColumns(results)
	if err != nil {
		return nil, 0, err
	}
	visible := sc.VisibleColumns(len(cols))
	m, err := build(sc, cols, visible)
	if err != nil {
		return nil, 0, err
	}
	pg := sc.Statement.Pagination
	if pg == nil {
		return m, visible, nil
	}
	var offset int64
	var limit int64 = pagedmerger.Unlimited
	if pg.Offset != nil {
		offset, err = pg.Offset.Resolve(params)
		if err != nil {
			return nil, 0, err
		}
	}
	if pg.RowCount != nil {
		limit, err = pg.RowCount.Resolve(params)
		if err != nil {
			return nil, 0, err
		}
	}
	pm, err := pagedmerger.NewMerger(m, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return pm, visible, nil
}

func build(sc *stmtctx.Context, cols []string, visible int) (merger.Merger, error) {
	if sc.HasGrouping() {
		aggs, err := aggregators(sc, cols)
		if err != nil {
			return nil, err
		}
		groupCols, err := columnInfos(sc.GroupBy, cols)
		if err != nil {
			return nil, err
		}
		switch {
		case sc.GroupByEqualsOrderBy():
			return groupbymerger.NewStreamMerger(aggs, groupCols), nil
		case len(groupCols) == 0 && !sc.DistinctAll:
			return aggregatemerger.NewMerger(aggs...), nil
		}
		if sc.DistinctAll {
			// DISTINCT 等价于按照所有可见列分组
			groupCols = make([]groupbymerger.ColumnInfo, 0, visible)
			for i := 0; i < visible; i++ {
				groupCols = append(groupCols, groupbymerger.ColumnInfo{Index: i, Order: utils.ASC})
			}
		}
		orderCols, err := columnInfos(sc.OrderBy, cols)
		if err != nil {
			return nil, err
		}
		return groupbymerger.NewAggregatorMerger(aggs, groupCols, orderCols...), nil
	}
	if len(sc.OrderBy) > 0 {
		sortCols := make([]sortmerger.SortColumn, 0, len(sc.OrderBy))
		for _, item := range sc.OrderBy {
			idx, err := item.Index(cols)
			if err != nil {
				return nil, err
			}
			sortCols = append(sortCols, sortmerger.NewSortIndex(idx, order(item)))
		}
		return sortmerger.NewMerger(sortCols...)
	}
	return batchmerger.Merger{}, nil
}

func aggregators(sc *stmtctx.Context, cols []string) ([]aggregator.Aggregator, error) {
	res := make([]aggregator.Aggregator, 0, len(sc.Aggregations))
	for _, agg := range sc.Aggregations {
		idx, err := stmtctx.IndexOf(cols, agg.Label)
		if err != nil {
			return nil, err
		}
		info := aggregator.NewColInfo(idx, agg.Label)
		switch agg.Type {
		case statement.AggCount:
			res = append(res, aggregator.NewCount(info))
		case statement.AggSum:
			res = append(res, aggregator.NewSum(info))
		case statement.AggMax:
			res = append(res, aggregator.NewMax(info))
		case statement.AggMin:
			res = append(res, aggregator.NewMin(info))
		case statement.AggAvg:
			countIdx, err := stmtctx.IndexOf(cols, agg.CountLabel)
			if err != nil {
				return nil, err
			}
			sumIdx, err := stmtctx.IndexOf(cols, agg.SumLabel)
			if err != nil {
				return nil, err
			}
			res = append(res, aggregator.NewAVG(
				aggregator.NewColInfo(sumIdx, agg.SumLabel),
				aggregator.NewColInfo(countIdx, agg.CountLabel),
				info))
		}
	}
	return res, nil
}

func columnInfos(items []stmtctx.Item, cols []string) ([]groupbymerger.ColumnInfo, error) {
	res := make([]groupbymerger.ColumnInfo, 0, len(items))
	for _, item := range items {
		idx, err := item.Index(cols)
		if err != nil {
			return nil, err
		}
		res = append(res, groupbymerger.ColumnInfo{Index: idx, Order: order(item)})
	}
	return res, nil
}

func order(item stmtctx.Item) utils.Order {
	if item.Desc {
		return utils.DESC
	}
	return utils.ASC
}

func closeAll(results []rows.Rows) error {
	errorList := make([]error, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			errorList = append(errorList, err)
		}
	}
	return multierr.Combine(errorList...)
}
