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

package merger

import (
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/rows"
)

// CheckColumns 检查所有结果集的列是否完全相同，返回列名
func CheckColumns(results []rows.Rows) ([]string, error) {
	if len(results) == 0 {
		return nil, errs.ErrMergerEmptyRows
	}
	var columns []string
	for i, r := range results {
		if r == nil {
			return nil, errs.ErrMergerRowsIsNull
		}
		cols, err := r.Columns()
		if err != nil {
			return nil, err
		}
		if i == 0 {
			columns = cols
			continue
		}
		if len(cols) != len(columns) {
			return nil, errs.ErrMergerRowsDiff
		}
		for idx, colName := range cols {
			if columns[idx] != colName {
				return nil, errs.ErrMergerRowsDiff
			}
		}
	}
	return columns, nil
}

// ScanValues 把缓存的一行数据赋值给 dest
func ScanValues(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errs.NewScanWrongDestinationArguments(len(values), len(dest))
	}
	for i := 0; i < len(dest); i++ {
		if err := rows.ConvertAssign(dest[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}
