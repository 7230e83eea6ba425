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

package route

import (
	"fmt"
	"strings"

	"github.com/ecodeclub/eshard/internal/condition"
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/ecodeclub/eshard/sharding"
	"github.com/gotomicro/ekit/slice"
)

// evaluate 计算一个维度上的目标
// conds 已经过滤成这张表的条件，hintValues 是该维度上显式传入的值
func evaluate(table string, s sharding.Strategy, targets []string,
	conds []condition.ShardingCondition, hintValues []any) ([]string, error) {
	var (
		res []string
		err error
	)
	switch st := s.(type) {
	case nil, sharding.NoneStrategy:
		return targets, nil
	case sharding.StandardStrategy:
		res, err = evaluateStandard(table, st, targets, conds)
	case sharding.ComplexStrategy:
		res, err = evaluateComplex(table, st, targets, conds)
	case sharding.HintStrategy:
		if len(hintValues) == 0 {
			return targets, nil
		}
		res, err = st.Algorithm.DoHintSharding(targets, sharding.HintValue{LogicTable: table, Values: hintValues})
		if err != nil {
			err = errs.NewRouteAlgorithmError(table, targets, nil, err)
		}
	default:
		return nil, errs.NewInvalidRuleError("逻辑表 %s 使用了未知的分片策略 %T", table, s)
	}
	if err != nil {
		return nil, err
	}
	return checkTargets(table, targets, res)
}

// checkTargets 算法必须返回非空并且属于 targets 的结果
// 返回值按照 targets 的顺序排列，保证路由结果稳定
func checkTargets(table string, targets, res []string) ([]string, error) {
	if len(res) == 0 {
		return nil, errs.NewRouteAlgorithmError(table, targets, res, nil)
	}
	for _, r := range res {
		if !contains(targets, r) {
			return nil, errs.NewRouteAlgorithmError(table, targets, res, nil)
		}
	}
	ordered := make([]string, 0, len(res))
	for _, t := range targets {
		if contains(res, t) {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

func evaluateStandard(table string, st sharding.StandardStrategy, targets []string,
	conds []condition.ShardingCondition) ([]string, error) {
	var (
		values    []any
		hasValues bool
		ranges    []sharding.RangeValue
	)
	for _, c := range conds {
		if !strings.EqualFold(c.Column, st.Column) {
			continue
		}
		switch c.Operator {
		case condition.OpEqual:
			if hasValues && len(values) == 1 && !sameValue(values[0], c.Values[0]) {
				if isEqualOnly(conds, st.Column) {
					return nil, errs.NewAmbiguousShardingValueError(table, st.Column, []any{values[0], c.Values[0]})
				}
			}
			values = mergeValues(values, hasValues, c.Values)
			hasValues = true
		case condition.OpIn:
			values = mergeValues(values, hasValues, c.Values)
			hasValues = true
		case condition.OpBetween:
			ranges = append(ranges, sharding.RangeValue{
				LogicTable: table, Column: st.Column, Lower: c.Values[0], Upper: c.Values[1],
			})
		}
	}
	if hasValues {
		// 条件互相矛盾的时候没办法缩小范围，退化成全路由
		if len(values) == 0 {
			return targets, nil
		}
		return preciseAll(table, st, targets, values)
	}
	if len(ranges) == 0 || st.Range == nil {
		return targets, nil
	}
	var res []string
	for i, r := range ranges {
		sel, err := st.Range.DoRangeSharding(targets, r)
		if err != nil {
			return nil, errs.NewRouteAlgorithmError(table, targets, nil, err)
		}
		if i == 0 {
			res = sel
			continue
		}
		res = slice.IntersectSetFunc(res, sel, func(src, dst string) bool {
			return src == dst
		})
	}
	if len(res) == 0 && len(ranges) > 1 {
		return targets, nil
	}
	return res, nil
}

func preciseAll(table string, st sharding.StandardStrategy, targets []string, values []any) ([]string, error) {
	res := make([]string, 0, len(values))
	for _, v := range values {
		t, err := st.Precise.DoSharding(targets, sharding.PreciseValue{
			LogicTable: table, Column: st.Column, Value: v,
		})
		if err != nil {
			return nil, errs.NewRouteAlgorithmError(table, targets, nil, err)
		}
		res = slice.UnionSetFunc(res, []string{t}, func(src, dst string) bool {
			return src == dst
		})
	}
	return res, nil
}

func evaluateComplex(table string, st sharding.ComplexStrategy, targets []string,
	conds []condition.ShardingCondition) ([]string, error) {
	val := sharding.ComplexValue{
		LogicTable: table,
		Values:     make(map[string][]any, len(st.Columns)),
		Ranges:     make(map[string]sharding.RangeValue, len(st.Columns)),
	}
	found := false
	for _, col := range st.Columns {
		hasValues := false
		var values []any
		for _, c := range conds {
			if !strings.EqualFold(c.Column, col) {
				continue
			}
			found = true
			if c.Operator == condition.OpBetween {
				val.Ranges[col] = sharding.RangeValue{
					LogicTable: table, Column: col, Lower: c.Values[0], Upper: c.Values[1],
				}
				continue
			}
			values = mergeValues(values, hasValues, c.Values)
			hasValues = true
		}
		if hasValues {
			val.Values[col] = values
		}
	}
	if !found {
		return targets, nil
	}
	res, err := st.Algorithm.DoComplexSharding(targets, val)
	if err != nil {
		return nil, errs.NewRouteAlgorithmError(table, targets, nil, err)
	}
	return res, nil
}

// mergeValues 同一列上的多个等值、IN 条件取交集
func mergeValues(values []any, hasValues bool, next []any) []any {
	if !hasValues {
		return dedupValues(next)
	}
	return slice.IntersectSetFunc(values, next, sameValue)
}

func dedupValues(values []any) []any {
	res := make([]any, 0, len(values))
	for _, v := range values {
		dup := false
		for _, r := range res {
			if sameValue(r, v) {
				dup = true
				break
			}
		}
		if !dup {
			res = append(res, v)
		}
	}
	return res
}

// isEqualOnly 该列上只有等值条件，这时候出现两个不同的值说明配置或者语句有歧义
func isEqualOnly(conds []condition.ShardingCondition, column string) bool {
	for _, c := range conds {
		if strings.EqualFold(c.Column, column) && c.Operator != condition.OpEqual {
			return false
		}
	}
	return true
}

// sameValue 42、int64(42)、"42" 都认为是同一个值
func sameValue(a, b any) bool {
	return valueKey(a) == valueKey(b)
}

func valueKey(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func contains(src []string, s string) bool {
	for _, v := range src {
		if v == s {
			return true
		}
	}
	return false
}
