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
	"database/sql"
	"sync"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/aggregatemerger/aggregator"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/sortmerger"
	"github.com/ecodeclub/eshard/internal/rows"
)

// StreamMerger 流式分组
// 要求各个结果集已经按照分组列排好序，也就是 ORDER BY 和 GROUP BY 一致，
// 这时候只需要在多路归并排序的基础上合并相邻的同组行
type StreamMerger struct {
	aggregators  []aggregator.Aggregator
	groupColumns []ColumnInfo
}

func NewStreamMerger(aggregators []aggregator.Aggregator, groupColumns []ColumnInfo) *StreamMerger {
	return &StreamMerger{
		aggregators:  aggregators,
		groupColumns: groupColumns,
	}
}

func (s *StreamMerger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	sortCols := make([]sortmerger.SortColumn, 0, len(s.groupColumns))
	for _, col := range s.groupColumns {
		sortCols = append(sortCols, sortmerger.NewSortIndex(col.Index, col.Order))
	}
	sm, err := sortmerger.NewMerger(sortCols...)
	if err != nil {
		return nil, err
	}
	src, err := sm.Merge(ctx, results)
	if err != nil {
		return nil, err
	}
	rs := &StreamRows{
		src:          src.(*sortmerger.Rows),
		aggregators:  s.aggregators,
		groupColumns: s.groupColumns,
		mu:           &sync.RWMutex{},
	}
	if rs.src.Next() {
		rs.peek = rs.src.Current()
	} else if err = rs.src.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

type StreamRows struct {
	src          *sortmerger.Rows
	aggregators  []aggregator.Aggregator
	groupColumns []ColumnInfo
	// peek 下一个分组的第一行
	peek    []any
	cur     []any
	mu      *sync.RWMutex
	lastErr error
	closed  bool
}

func (r *StreamRows) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.lastErr != nil {
		r.cur = nil
		return false
	}
	if r.peek == nil {
		r.cur = nil
		r.closed = true
		_ = r.src.Close()
		return false
	}
	first := r.peek
	r.peek = nil
	g, err := aggregator.NewGroup(r.aggregators, first)
	if err != nil {
		return r.fail(err)
	}
	key := newKey(first, r.groupColumns)
	for r.src.Next() {
		row := r.src.Current()
		if compareKey(newKey(row, r.groupColumns), key) != 0 {
			r.peek = row
			break
		}
		if err = g.Merge(row); err != nil {
			return r.fail(err)
		}
	}
	if err = r.src.Err(); err != nil {
		return r.fail(err)
	}
	r.cur = g.Row()
	return true
}

func (r *StreamRows) fail(err error) bool {
	r.lastErr = err
	r.cur = nil
	_ = r.src.Close()
	return false
}

func (r *StreamRows) Value(index int) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return nil, r.lastErr
	}
	if r.cur == nil {
		return nil, errs.ErrMergerScanNotNext
	}
	if index < 0 || index >= len(r.cur) {
		return nil, errs.NewInvalidColumnIndex(index, len(r.cur))
	}
	return r.cur[index], nil
}

func (r *StreamRows) Scan(dest ...any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return r.lastErr
	}
	if r.closed {
		return errs.ErrMergerRowsClosed
	}
	if r.cur == nil {
		return errs.ErrMergerScanNotNext
	}
	return merger.ScanValues(r.cur, dest)
}

func (r *StreamRows) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.src.Close()
}

func (r *StreamRows) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *StreamRows) Columns() ([]string, error) {
	return r.src.Columns()
}

func (r *StreamRows) ColumnTypes() ([]*sql.ColumnType, error) {
	return r.src.ColumnTypes()
}

func (*StreamRows) NextResultSet() bool {
	return false
}
