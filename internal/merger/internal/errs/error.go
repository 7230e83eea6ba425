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

package errs

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySortColumns           = errors.New("merger: 排序列为空")
	ErrMergerEmptyRows            = errors.New("merger: sql.Rows列表为空")
	ErrMergerRowsIsNull           = errors.New("merger: sql.Rows列表中有元素为nil")
	ErrMergerScanNotNext          = errors.New("merger: Scan之前没有调用Next方法")
	ErrMergerRowsClosed           = errors.New("merger: Rows已经关闭")
	ErrMergerRowsDiff             = errors.New("merger: sql.Rows列表中的字段不同")
	ErrMergerInvalidLimitOrOffset = errors.New("merger: offset小于0或者limit小于-1")
	ErrMergerEmptyAggregations    = errors.New("merger: 聚合函数和分组列为空")
)

func NewInvalidSortColumn(column string) error {
	return fmt.Errorf("merger: 数据库字段中没有这个排序列：%s", column)
}

func NewInvalidColumnIndex(index, count int) error {
	return fmt.Errorf("merger: 列下标 %d 不合法，共 %d 列", index, count)
}

func NewUnsupportedAggregateValue(name string, val any) error {
	return fmt.Errorf("merger: 聚合函数 %s 不支持类型 %T 的值 %v", name, val, val)
}

func NewScanWrongDestinationArguments(expect, actual int) error {
	return fmt.Errorf("merger: Scan 方法收到过多或者过少的参数，预期 %d，实际 %d", expect, actual)
}
