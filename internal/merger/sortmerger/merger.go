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

package sortmerger

import (
	"container/heap"
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"go.uber.org/multierr"
)

type SortColumn struct {
	name  string
	index int
	order utils.Order
}

// NewSortColumn 按照列名排序
func NewSortColumn(colName string, order utils.Order) SortColumn {
	return SortColumn{
		name:  colName,
		index: -1,
		order: order,
	}
}

// NewSortIndex 按照列的位置排序，对应 ORDER BY 2 这种写法
func NewSortIndex(index int, order utils.Order) SortColumn {
	return SortColumn{
		index: index,
		order: order,
	}
}

type SortColumns struct {
	columns []SortColumn
}

func (s SortColumns) Get(index int) SortColumn {
	return s.columns[index]
}

func (s SortColumns) Len() int {
	return len(s.columns)
}

// resolve 把列名解析成下标
func (s SortColumns) resolve(cols []string) (SortColumns, error) {
	res := make([]SortColumn, 0, len(s.columns))
	for _, c := range s.columns {
		if c.name == "" {
			if c.index < 0 || c.index >= len(cols) {
				return SortColumns{}, errs.NewInvalidColumnIndex(c.index, len(cols))
			}
			res = append(res, c)
			continue
		}
		idx := -1
		for i, col := range cols {
			if strings.EqualFold(col, c.name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return SortColumns{}, errs.NewInvalidSortColumn(c.name)
		}
		c.index = idx
		res = append(res, c)
	}
	return SortColumns{columns: res}, nil
}

// Merger 多路归并排序
// 每一个结果集必须已经按照同样的排序列排好序
type Merger struct {
	SortColumns
}

func NewMerger(sortCols ...SortColumn) (*Merger, error) {
	if len(sortCols) == 0 {
		return nil, errs.ErrEmptySortColumns
	}
	return &Merger{
		SortColumns: SortColumns{columns: sortCols},
	}, nil
}

func (m *Merger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cols, err := merger.CheckColumns(results)
	if err != nil {
		return nil, err
	}
	scs, err := m.SortColumns.resolve(cols)
	if err != nil {
		return nil, err
	}
	rs := &Rows{
		rowsList:    results,
		sortColumns: scs,
		columns:     cols,
		mu:          &sync.RWMutex{},
		hp: &Heap{
			h:           make([]*node, 0, len(results)),
			sortColumns: scs,
		},
	}
	for i := 0; i < len(rs.rowsList); i++ {
		if ctx.Err() != nil {
			_ = rs.Close()
			return nil, ctx.Err()
		}
		err = rs.nextRows(rs.rowsList[i], i)
		if err != nil {
			_ = rs.Close()
			return nil, err
		}
	}
	return rs, nil
}

type Rows struct {
	rowsList    []rows.Rows
	sortColumns SortColumns
	hp          *Heap
	cur         *node
	mu          *sync.RWMutex
	lastErr     error
	closed      bool
	columns     []string
}

func (r *Rows) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if r.hp.Len() == 0 || r.lastErr != nil {
		r.cur = nil
		_ = r.close()
		return false
	}
	r.cur = heap.Pop(r.hp).(*node)
	err := r.nextRows(r.rowsList[r.cur.index], r.cur.index)
	if err != nil {
		// 任何一个结果集出错，立刻关闭所有的结果集
		r.lastErr = err
		r.cur = nil
		_ = r.close()
		return false
	}
	return true
}

func (r *Rows) nextRows(row rows.Rows, index int) error {
	if row.Next() {
		n, err := r.newNode(row, index)
		if err != nil {
			return err
		}
		heap.Push(r.hp, n)
	} else if row.Err() != nil {
		return row.Err()
	}
	return nil
}

func (r *Rows) newNode(row rows.Rows, index int) (*node, error) {
	columns, err := utils.Scan(row)
	if err != nil {
		return nil, err
	}
	sortCols := make([]any, 0, r.sortColumns.Len())
	for _, c := range r.sortColumns.columns {
		sortCols = append(sortCols, columns[c.index])
	}
	return &node{
		sortCols: sortCols,
		columns:  columns,
		index:    index,
	}, nil
}

// Current 当前行的全部列
func (r *Rows) Current() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cur == nil {
		return nil
	}
	return r.cur.columns
}

func (r *Rows) Value(index int) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return nil, r.lastErr
	}
	if r.cur == nil {
		return nil, errs.ErrMergerScanNotNext
	}
	if index < 0 || index >= len(r.cur.columns) {
		return nil, errs.NewInvalidColumnIndex(index, len(r.cur.columns))
	}
	return r.cur.columns[index], nil
}

func (r *Rows) Scan(dest ...any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return r.lastErr
	}
	if r.cur == nil {
		if r.closed {
			return errs.ErrMergerRowsClosed
		}
		return errs.ErrMergerScanNotNext
	}
	return merger.ScanValues(r.cur.columns, dest)
}

func (r *Rows) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.close()
}

func (r *Rows) close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	errorList := make([]error, 0, len(r.rowsList))
	for i := 0; i < len(r.rowsList); i++ {
		if err := r.rowsList[i].Close(); err != nil {
			errorList = append(errorList, err)
		}
	}
	return multierr.Combine(errorList...)
}

func (r *Rows) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Rows) Columns() ([]string, error) {
	return r.columns, nil
}

func (r *Rows) ColumnTypes() ([]*sql.ColumnType, error) {
	return r.rowsList[0].ColumnTypes()
}

func (*Rows) NextResultSet() bool {
	return false
}
