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

// Group 一个分组的聚合状态
// 第一次出现的行作为模板，聚合结果写回到模板对应的列
type Group struct {
	template     []any
	aggregators  []Aggregator
	accumulators []Accumulator
}

func NewGroup(aggregators []Aggregator, first []any) (*Group, error) {
	g := &Group{
		template:     first,
		aggregators:  aggregators,
		accumulators: make([]Accumulator, 0, len(aggregators)),
	}
	for _, agg := range aggregators {
		g.accumulators = append(g.accumulators, agg.NewAccumulator())
	}
	return g, g.Merge(first)
}

func (g *Group) Merge(row []any) error {
	for _, acc := range g.accumulators {
		if err := acc.Merge(row); err != nil {
			return err
		}
	}
	return nil
}

// Row 聚合之后的一行
func (g *Group) Row() []any {
	res := make([]any, len(g.template))
	copy(res, g.template)
	for i, agg := range g.aggregators {
		res[agg.ColumnIndex()] = g.accumulators[i].Result()
	}
	return res
}
