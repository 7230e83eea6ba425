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

// PreciseValue 等值条件的值
type PreciseValue struct {
	LogicTable string
	Column     string
	Value      any
}

// RangeValue BETWEEN 条件的值，闭区间
type RangeValue struct {
	LogicTable string
	Column     string
	Lower      any
	Upper      any
}

// ComplexValue 多列分片时传给算法的全部值
// Values 里面是等值和 IN 的值，Ranges 里面是 BETWEEN 的值
type ComplexValue struct {
	LogicTable string
	Values     map[string][]any
	Ranges     map[string]RangeValue
}

// HintValue 显式传入的分片值
type HintValue struct {
	LogicTable string
	Values     []any
}

// PreciseAlgorithm 从 targets 里面选出唯一的一个目标
type PreciseAlgorithm interface {
	DoSharding(targets []string, val PreciseValue) (string, error)
}

// RangeAlgorithm 从 targets 里面选出覆盖区间的目标
type RangeAlgorithm interface {
	DoRangeSharding(targets []string, val RangeValue) ([]string, error)
}

type ComplexAlgorithm interface {
	DoComplexSharding(targets []string, val ComplexValue) ([]string, error)
}

type HintAlgorithm interface {
	DoHintSharding(targets []string, val HintValue) ([]string, error)
}

// PreciseFunc 用函数实现 PreciseAlgorithm
type PreciseFunc func(targets []string, val PreciseValue) (string, error)

func (f PreciseFunc) DoSharding(targets []string, val PreciseValue) (string, error) {
	return f(targets, val)
}

type RangeFunc func(targets []string, val RangeValue) ([]string, error)

func (f RangeFunc) DoRangeSharding(targets []string, val RangeValue) ([]string, error) {
	return f(targets, val)
}

type ComplexFunc func(targets []string, val ComplexValue) ([]string, error)

func (f ComplexFunc) DoComplexSharding(targets []string, val ComplexValue) ([]string, error) {
	return f(targets, val)
}

type HintFunc func(targets []string, val HintValue) ([]string, error)

func (f HintFunc) DoHintSharding(targets []string, val HintValue) ([]string, error) {
	return f(targets, val)
}

// KeyGenerator 为 INSERT 语句生成主键
type KeyGenerator interface {
	NextKey() (any, error)
}
