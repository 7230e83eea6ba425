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

package aggregator

import (
	"github.com/ecodeclub/eshard/internal/merger/utils"
)

var (
	_ Aggregator = &Max{}
	_ Aggregator = &Min{}
)

// Max 取各个分片的最大值，忽略 NULL
type Max struct {
	colInfo ColInfo
}

func NewMax(info ColInfo) *Max {
	return &Max{colInfo: info}
}

func (m *Max) NewAccumulator() Accumulator {
	return &extremumAccumulator{idx: m.colInfo.Index, order: utils.DESC}
}

func (m *Max) ColumnIndex() int {
	return m.colInfo.Index
}

func (m *Max) ColumnName() string {
	return m.colInfo.Name
}

// Min 取各个分片的最小值，忽略 NULL
type Min struct {
	colInfo ColInfo
}

func NewMin(info ColInfo) *Min {
	return &Min{colInfo: info}
}

func (m *Min) NewAccumulator() Accumulator {
	return &extremumAccumulator{idx: m.colInfo.Index, order: utils.ASC}
}

func (m *Min) ColumnIndex() int {
	return m.colInfo.Index
}

func (m *Min) ColumnName() string {
	return m.colInfo.Name
}

// extremumAccumulator 按照 order 排序之后排在最前面的值
type extremumAccumulator struct {
	idx   int
	order utils.Order
	cur   any
}

func (e *extremumAccumulator) Merge(row []any) error {
	v, err := column(row, e.idx)
	if err != nil {
		return err
	}
	v = utils.Normalize(v)
	if v == nil {
		return nil
	}
	if e.cur == nil || utils.Compare(v, e.cur, e.order) < 0 {
		e.cur = v
	}
	return nil
}

func (e *extremumAccumulator) Result() any {
	return e.cur
}
