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

package sharding

// Strategy 分片策略，只有本包内的几种实现
// 路由的时候会穷举匹配所有的实现
type Strategy interface {
	// ShardingColumns 参与分片的列
	ShardingColumns() []string
	isStrategy()
}

// NoneStrategy 不分片，总是返回全部目标
type NoneStrategy struct{}

func (NoneStrategy) ShardingColumns() []string {
	return nil
}

func (NoneStrategy) isStrategy() {}

// StandardStrategy 单列分片
// Precise 处理 = 和 IN，Range 处理 BETWEEN，Range 可以为 nil
type StandardStrategy struct {
	Column  string
	Precise PreciseAlgorithm
	Range   RangeAlgorithm
}

func (s StandardStrategy) ShardingColumns() []string {
	return []string{s.Column}
}

func (StandardStrategy) isStrategy() {}

// ComplexStrategy 多列联合分片
type ComplexStrategy struct {
	Columns   []string
	Algorithm ComplexAlgorithm
}

func (s ComplexStrategy) ShardingColumns() []string {
	return s.Columns
}

func (ComplexStrategy) isStrategy() {}

// HintStrategy 不使用 SQL 里面的条件，而是使用调用方显式传入的 Hint
type HintStrategy struct {
	Algorithm HintAlgorithm
}

func (HintStrategy) ShardingColumns() []string {
	return nil
}

func (HintStrategy) isStrategy() {}
