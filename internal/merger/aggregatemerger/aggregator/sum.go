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

var _ Aggregator = &Sum{}

// Sum 各个分片的 SUM 相加，全部为 NULL 的时候结果也是 NULL
type Sum struct {
	colInfo ColInfo
}

func NewSum(info ColInfo) *Sum {
	return &Sum{colInfo: info}
}

func (s *Sum) NewAccumulator() Accumulator {
	return &sumAccumulator{idx: s.colInfo.Index}
}

func (s *Sum) ColumnIndex() int {
	return s.colInfo.Index
}

func (s *Sum) ColumnName() string {
	return s.colInfo.Name
}

type sumAccumulator struct {
	idx   int
	sum   number
	valid bool
}

func (s *sumAccumulator) Merge(row []any) error {
	v, err := column(row, s.idx)
	if err != nil {
		return err
	}
	n, ok, err := toNumber("SUM", v)
	if err != nil || !ok {
		return err
	}
	s.sum = s.sum.add(n)
	s.valid = true
	return nil
}

func (s *sumAccumulator) Result() any {
	if !s.valid {
		return nil
	}
	return s.sum.value()
}
