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

package engine

import (
	"database/sql"

	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
)

// visibleRows 隐藏为了归并补充的派生列
type visibleRows struct {
	merger.Rows
	visible int
	columns []string
}

func newVisibleRows(rs merger.Rows, visible int) (merger.Rows, error) {
	cols, err := rs.Columns()
	if err != nil {
		_ = rs.Close()
		return nil, err
	}
	if visible >= len(cols) {
		return rs, nil
	}
	return &visibleRows{
		Rows:    rs,
		visible: visible,
		columns: cols[:visible],
	}, nil
}

func (v *visibleRows) Columns() ([]string, error) {
	return v.columns, nil
}

func (v *visibleRows) ColumnTypes() ([]*sql.ColumnType, error) {
	types, err := v.Rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(types) > v.visible {
		types = types[:v.visible]
	}
	return types, nil
}

func (v *visibleRows) Value(index int) (any, error) {
	if index < 0 || index >= v.visible {
		return nil, errs.NewInvalidColumnIndex(index, v.visible)
	}
	return v.Rows.Value(index)
}

func (v *visibleRows) Scan(dest ...any) error {
	if len(dest) != v.visible {
		return errs.NewScanWrongDestinationArguments(v.visible, len(dest))
	}
	values := make([]any, 0, v.visible)
	for i := 0; i < v.visible; i++ {
		val, err := v.Rows.Value(i)
		if err != nil {
			return err
		}
		values = append(values, val)
	}
	return merger.ScanValues(values, dest)
}
