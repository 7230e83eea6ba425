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

package batchmerger

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"go.uber.org/multierr"
)

// Merger 依次遍历每一个结果集
// 只有一个结果集的时候就是透明归并
type Merger struct{}

func (Merger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cols, err := merger.CheckColumns(results)
	if err != nil {
		return nil, err
	}
	return &MergerRows{
		rows:    results,
		columns: cols,
		mu:      &sync.RWMutex{},
	}, nil
}

type MergerRows struct {
	rows    []rows.Rows
	columns []string
	cnt     int
	// cur 当前行的缓存，调用 Value 的时候才会读取
	cur     []any
	hasRow  bool
	lastErr error
	closed  bool
	mu      *sync.RWMutex
}

func (m *MergerRows) Next() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = nil
	m.hasRow = false
	if m.closed || m.lastErr != nil {
		return false
	}
	for m.cnt < len(m.rows) {
		row := m.rows[m.cnt]
		if row.Next() {
			m.hasRow = true
			return true
		}
		if err := row.Err(); err != nil {
			m.lastErr = err
			_ = m.close()
			return false
		}
		m.cnt++
	}
	_ = m.close()
	return false
}

func (m *MergerRows) Value(index int) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	if !m.hasRow {
		return nil, errs.ErrMergerScanNotNext
	}
	if m.cur == nil {
		cur, err := utils.Scan(m.rows[m.cnt])
		if err != nil {
			return nil, err
		}
		m.cur = cur
	}
	if index < 0 || index >= len(m.cur) {
		return nil, errs.NewInvalidColumnIndex(index, len(m.cur))
	}
	return m.cur[index], nil
}

// Scan 直接委托给底层的结果集
func (m *MergerRows) Scan(dest ...any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastErr != nil {
		return m.lastErr
	}
	if !m.hasRow {
		if m.closed {
			return errs.ErrMergerRowsClosed
		}
		return errs.ErrMergerScanNotNext
	}
	if m.cur != nil {
		return merger.ScanValues(m.cur, dest)
	}
	return m.rows[m.cnt].Scan(dest...)
}

func (m *MergerRows) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.close()
}

func (m *MergerRows) close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	errorList := make([]error, 0, len(m.rows))
	for i := 0; i < len(m.rows); i++ {
		if err := m.rows[i].Close(); err != nil {
			errorList = append(errorList, err)
		}
	}
	return multierr.Combine(errorList...)
}

func (m *MergerRows) Columns() ([]string, error) {
	return m.columns, nil
}

func (m *MergerRows) ColumnTypes() ([]*sql.ColumnType, error) {
	return m.rows[0].ColumnTypes()
}

func (m *MergerRows) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (*MergerRows) NextResultSet() bool {
	return false
}
