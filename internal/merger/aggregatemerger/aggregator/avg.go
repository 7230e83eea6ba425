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

var _ Aggregator = &AVG{}

// AVG 使用派生的 SUM 和 COUNT 列重新计算平均值
// 直接对各个分片的平均值求平均是错的
type AVG struct {
	sumInfo   ColInfo
	countInfo ColInfo
	alias     ColInfo
}

// NewAVG 第一个参数为派生的 SUM 列，第二个为派生的 COUNT 列，第三个为结果列
func NewAVG(sumInfo ColInfo, countInfo ColInfo, alias ColInfo) *AVG {
	return &AVG{
		sumInfo:   sumInfo,
		countInfo: countInfo,
		alias:     alias,
	}
}

func (a *AVG) NewAccumulator() Accumulator {
	return &avgAccumulator{
		sum:   sumAccumulator{idx: a.sumInfo.Index},
		count: countAccumulator{idx: a.countInfo.Index},
	}
}

func (a *AVG) ColumnIndex() int {
	return a.alias.Index
}

func (a *AVG) ColumnName() string {
	return a.alias.Name
}

type avgAccumulator struct {
	sum   sumAccumulator
	count countAccumulator
}

func (a *avgAccumulator) Merge(row []any) error {
	if err := a.sum.Merge(row); err != nil {
		return err
	}
	return a.count.Merge(row)
}

func (a *avgAccumulator) Result() any {
	cnt := a.count.sum.float()
	if !a.sum.valid || cnt == 0 {
		return nil
	}
	return a.sum.sum.float() / cnt
}
