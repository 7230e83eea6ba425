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

package pagedmerger

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/rows"
)

// Unlimited 只有 OFFSET 没有 LIMIT
const Unlimited = -1

// Merger 分页装饰器
// 每个分片都返回了 offset + limit 行，这里跳过前 offset 行，最多返回 limit 行
type Merger struct {
	m      merger.Merger
	limit  int64
	offset int64
}

func NewMerger(m merger.Merger, offset int64, limit int64) (*Merger, error) {
	if offset < 0 || limit < Unlimited {
		return nil, errs.ErrMergerInvalidLimitOrOffset
	}
	return &Merger{
		m:      m,
		limit:  limit,
		offset: offset,
	}, nil
}

func (m *Merger) Merge(ctx context.Context, results []rows.Rows) (merger.Rows, error) {
	rs, err := m.m.Merge(ctx, results)
	if err != nil {
		return nil, err
	}
	err = m.nextOffset(ctx, rs)
	if err != nil {
		_ = rs.Close()
		return nil, err
	}
	return &Rows{
		rows:  rs,
		mu:    &sync.RWMutex{},
		limit: m.limit,
	}, nil
}

// nextOffset 会把游标挪到 offset 所指定的位置。
func (m *Merger) nextOffset(ctx context.Context, rows merger.Rows) error {
	for i := int64(0); i < m.offset; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// 如果偏移量超过rows结果集返回的行数，不会报错。用户最终查到0行
		if !rows.Next() {
			return rows.Err()
		}
	}
	return nil
}

type Rows struct {
	rows    merger.Rows
	limit   int64
	cnt     int64
	lastErr error
	closed  bool
	mu      *sync.RWMutex
}

func (*Rows) NextResultSet() bool {
	return false
}

func (r *Rows) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if (r.limit != Unlimited && r.cnt >= r.limit) || r.lastErr != nil {
		_ = r.close()
		return false
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.lastErr = err
		}
		_ = r.close()
		return false
	}
	r.cnt++
	return true
}

func (r *Rows) Value(index int) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return nil, r.lastErr
	}
	return r.rows.Value(index)
}

func (r *Rows) Scan(dest ...any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr != nil {
		return r.lastErr
	}
	if r.closed {
		return errs.ErrMergerRowsClosed
	}
	return r.rows.Scan(dest...)
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
	return r.rows.Close()
}

func (r *Rows) ColumnTypes() ([]*sql.ColumnType, error) {
	return r.rows.ColumnTypes()
}

func (r *Rows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *Rows) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}
