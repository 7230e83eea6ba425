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

package rows

import (
	"database/sql"

	"github.com/ecodeclub/eshard/internal/errs"
)

var _ Rows = (*DataRows)(nil)

// DataRows 内存里面已经算好的结果，内存分组和聚合归并用它输出
// 非线程安全实现
type DataRows struct {
	data        [][]any
	columns     []string
	columnTypes []*sql.ColumnType
	// 当前行，-1 表示还没有调用 Next
	idx    int
	closed bool
}

func (*DataRows) NextResultSet() bool {
	return false
}

func (d *DataRows) ColumnTypes() ([]*sql.ColumnType, error) {
	return d.columnTypes, nil
}

func NewDataRows(data [][]any, columns []string, columnTypes []*sql.ColumnType) *DataRows {
	return &DataRows{
		data:        data,
		columns:     columns,
		idx:         -1,
		columnTypes: columnTypes,
	}
}

func (d *DataRows) Next() bool {
	if d.closed || d.idx >= len(d.data)-1 {
		return false
	}
	d.idx++
	return true
}

func (d *DataRows) current() ([]any, error) {
	if d.closed || d.idx < 0 || d.idx >= len(d.data) {
		return nil, errs.ErrScanNotNext
	}
	return d.data[d.idx], nil
}

// Value 当前行第 index 列的原始值
func (d *DataRows) Value(index int) (any, error) {
	data, err := d.current()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(data) {
		return nil, errs.NewInvalidColumnIndexError(index, len(data))
	}
	return data[index], nil
}

func (d *DataRows) Scan(dest ...any) error {
	data, err := d.current()
	if err != nil {
		return err
	}
	if len(data) != len(dest) {
		return errs.NewErrScanWrongDestinationArguments(len(data), len(dest))
	}
	for idx, dst := range dest {
		if err := ConvertAssign(dst, data[idx]); err != nil {
			return err
		}
	}
	return nil
}

// Close 之后 Next 总是返回 false
func (d *DataRows) Close() error {
	d.closed = true
	d.data = nil
	return nil
}

func (d *DataRows) Columns() ([]string, error) {
	return d.columns, nil
}

func (*DataRows) Err() error {
	return nil
}
