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

var _ Aggregator = &Count{}

// Count 各个分片的 COUNT 相加
type Count struct {
	colInfo ColInfo
}

func NewCount(info ColInfo) *Count {
	return &Count{colInfo: info}
}

func (c *Count) NewAccumulator() Accumulator {
	return &countAccumulator{idx: c.colInfo.Index}
}

func (c *Count) ColumnIndex() int {
	return c.colInfo.Index
}

func (c *Count) ColumnName() string {
	return c.colInfo.Name
}

type countAccumulator struct {
	idx int
	sum number
}

func (c *countAccumulator) Merge(row []any) error {
	v, err := column(row, c.idx)
	if err != nil {
		return err
	}
	n, ok, err := toNumber("COUNT", v)
	if err != nil || !ok {
		return err
	}
	c.sum = c.sum.add(n)
	return nil
}

func (c *countAccumulator) Result() any {
	return c.sum.value()
}
