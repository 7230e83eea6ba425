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
	"math"
	"strconv"

	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/utils"
)

// Aggregator 聚合函数，每一个分组创建一个 Accumulator
type Aggregator interface {
	NewAccumulator() Accumulator
	// ColumnIndex 聚合结果写回到哪一列
	ColumnIndex() int
	// ColumnName 返回聚合结果的列名
	ColumnName() string
}

// Accumulator 聚合的中间状态
type Accumulator interface {
	// Merge 合并一行分片的结果
	Merge(row []any) error
	Result() any
}

type ColInfo struct {
	Index int
	Name  string
}

func NewColInfo(index int, name string) ColInfo {
	return ColInfo{
		Index: index,
		Name:  name,
	}
}

// number 数值的统一表示，整数尽量保持为整数
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n number) add(o number) number {
	if !n.isFloat && !o.isFloat {
		sum := n.i + o.i
		// 溢出之后转成浮点数
		if (o.i > 0 && sum < n.i) || (o.i < 0 && sum > n.i) {
			return number{f: float64(n.i) + float64(o.i), isFloat: true}
		}
		return number{i: sum}
	}
	return number{f: n.float() + o.float(), isFloat: true}
}

func (n number) value() any {
	if n.isFloat {
		return n.f
	}
	return n.i
}

// toNumber NULL 返回 false
func toNumber(name string, v any) (number, bool, error) {
	switch val := utils.Normalize(v).(type) {
	case nil:
		return number{}, false, nil
	case int64:
		return number{i: val}, true, nil
	case uint64:
		if val > math.MaxInt64 {
			return number{f: float64(val), isFloat: true}, true, nil
		}
		return number{i: int64(val)}, true, nil
	case float64:
		return number{f: val, isFloat: true}, true, nil
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return number{i: i}, true, nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return number{}, false, errs.NewUnsupportedAggregateValue(name, v)
		}
		return number{f: f, isFloat: true}, true, nil
	default:
		return number{}, false, errs.NewUnsupportedAggregateValue(name, v)
	}
}

func column(row []any, idx int) (any, error) {
	if idx < 0 || idx >= len(row) {
		return nil, errs.NewInvalidColumnIndex(idx, len(row))
	}
	return row[idx], nil
}
