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

package algorithm

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/ecodeclub/eshard/sharding"
)

var (
	_ sharding.PreciseAlgorithm = Mod{}
	_ sharding.RangeAlgorithm   = Mod{}
	_ sharding.PreciseAlgorithm = HashMod{}
	_ sharding.RangeAlgorithm   = HashMod{}
	_ sharding.HintAlgorithm    = HintMod{}
)

// Mod 取模分片，目标的数字后缀就是余数
// 例如 ShardingCount 为 4 时，42 会路由到 t_order_2
type Mod struct {
	ShardingCount int64
}

func (m Mod) DoSharding(targets []string, val sharding.PreciseValue) (string, error) {
	v, err := toInt64(val.Value)
	if err != nil {
		return "", err
	}
	idx, err := m.mod(v)
	if err != nil {
		return "", err
	}
	return matchSuffix(targets, idx)
}

// DoRangeSharding 区间跨度不小于分片数的时候全部路由
func (m Mod) DoRangeSharding(targets []string, val sharding.RangeValue) ([]string, error) {
	lower, err := toInt64(val.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := toInt64(val.Upper)
	if err != nil {
		return nil, err
	}
	if upper < lower {
		return nil, fmt.Errorf("algorithm: 区间 [%d, %d] 不合法", lower, upper)
	}
	if upper-lower+1 >= m.ShardingCount {
		return targets, nil
	}
	res := make([]string, 0, upper-lower+1)
	for v := lower; v <= upper; v++ {
		idx, err := m.mod(v)
		if err != nil {
			return nil, err
		}
		t, err := matchSuffix(targets, idx)
		if err != nil {
			return nil, err
		}
		res = appendUnique(res, t)
	}
	return res, nil
}

func (m Mod) mod(v int64) (int64, error) {
	if m.ShardingCount <= 0 {
		return 0, fmt.Errorf("algorithm: 分片数 %d 不合法", m.ShardingCount)
	}
	idx := v % m.ShardingCount
	if idx < 0 {
		idx = -idx
	}
	return idx, nil
}

// HashMod 先哈希再取模，适合字符串分片键
type HashMod struct {
	ShardingCount int64
}

func (h HashMod) DoSharding(targets []string, val sharding.PreciseValue) (string, error) {
	if h.ShardingCount <= 0 {
		return "", fmt.Errorf("algorithm: 分片数 %d 不合法", h.ShardingCount)
	}
	var key string
	switch v := val.Value.(type) {
	case string:
		key = v
	case []byte:
		key = string(v)
	default:
		key = fmt.Sprint(v)
	}
	idx := int64(xxhash.Sum64String(key) % uint64(h.ShardingCount))
	return matchSuffix(targets, idx)
}

// DoRangeSharding 哈希之后区间没有意义，只能全部路由
func (h HashMod) DoRangeSharding(targets []string, _ sharding.RangeValue) ([]string, error) {
	return targets, nil
}

// HintMod 使用 Hint 传入的值取模
type HintMod struct {
	ShardingCount int64
}

func (h HintMod) DoHintSharding(targets []string, val sharding.HintValue) ([]string, error) {
	m := Mod{ShardingCount: h.ShardingCount}
	res := make([]string, 0, len(val.Values))
	for _, v := range val.Values {
		t, err := m.DoSharding(targets, sharding.PreciseValue{LogicTable: val.LogicTable, Value: v})
		if err != nil {
			return nil, err
		}
		res = appendUnique(res, t)
	}
	return res, nil
}
