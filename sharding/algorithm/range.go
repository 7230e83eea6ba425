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
	"sort"
	"time"

	"github.com/ecodeclub/eshard/sharding"
)

var (
	_ sharding.PreciseAlgorithm = VolumeRange{}
	_ sharding.RangeAlgorithm   = VolumeRange{}
	_ sharding.PreciseAlgorithm = BoundaryRange{}
	_ sharding.RangeAlgorithm   = BoundaryRange{}
	_ sharding.PreciseAlgorithm = Interval{}
	_ sharding.RangeAlgorithm   = Interval{}
)

// partitioner 把值映射到分区下标，分区下标就是目标的数字后缀
type partitioner func(v int64) int64

func preciseByPartition(targets []string, value any, p partitioner) (string, error) {
	v, err := toInt64(value)
	if err != nil {
		return "", err
	}
	return matchSuffix(targets, p(v))
}

func rangeByPartition(targets []string, val sharding.RangeValue, p partitioner) ([]string, error) {
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
	var res []string
	for idx := p(lower); idx <= p(upper); idx++ {
		t, err := matchSuffix(targets, idx)
		if err != nil {
			// 分区没有配置对应的目标，跳过
			continue
		}
		res = appendUnique(res, t)
	}
	return res, nil
}

// VolumeRange 按照固定容量划分区间
// 分区 0 是 (-∞, Lower)，之后每 Volume 一个分区，最后一个分区是 [Upper, +∞)
type VolumeRange struct {
	Lower  int64
	Upper  int64
	Volume int64
}

func (v VolumeRange) partition(val int64) int64 {
	if val < v.Lower {
		return 0
	}
	last := (v.Upper-v.Lower)/v.Volume + 1
	if val >= v.Upper {
		return last
	}
	return (val-v.Lower)/v.Volume + 1
}

func (v VolumeRange) check() error {
	if v.Volume <= 0 || v.Upper <= v.Lower {
		return fmt.Errorf("algorithm: 容量区间 [%d, %d) 步长 %d 不合法", v.Lower, v.Upper, v.Volume)
	}
	return nil
}

func (v VolumeRange) DoSharding(targets []string, val sharding.PreciseValue) (string, error) {
	if err := v.check(); err != nil {
		return "", err
	}
	return preciseByPartition(targets, val.Value, v.partition)
}

func (v VolumeRange) DoRangeSharding(targets []string, val sharding.RangeValue) ([]string, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	return rangeByPartition(targets, val, v.partition)
}

// BoundaryRange 按照升序的边界划分区间
// 分区 0 是 (-∞, b0)，分区 i 是 [b(i-1), bi)，最后一个分区是 [bn, +∞)
type BoundaryRange struct {
	Boundaries []int64
}

func (b BoundaryRange) partition(val int64) int64 {
	return int64(sort.Search(len(b.Boundaries), func(i int) bool {
		return b.Boundaries[i] > val
	}))
}

func (b BoundaryRange) check() error {
	if len(b.Boundaries) == 0 {
		return fmt.Errorf("algorithm: 边界为空")
	}
	if !sort.SliceIsSorted(b.Boundaries, func(i, j int) bool {
		return b.Boundaries[i] < b.Boundaries[j]
	}) {
		return fmt.Errorf("algorithm: 边界 %v 不是升序", b.Boundaries)
	}
	return nil
}

func (b BoundaryRange) DoSharding(targets []string, val sharding.PreciseValue) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	return preciseByPartition(targets, val.Value, b.partition)
}

func (b BoundaryRange) DoRangeSharding(targets []string, val sharding.RangeValue) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return rangeByPartition(targets, val, b.partition)
}

type IntervalUnit uint8

const (
	IntervalDay IntervalUnit = iota
	IntervalMonth
	IntervalYear
)

// Interval 时间区间分片
// 从 Lower 开始每 Amount 个 Unit 一个分区，目标名以 SuffixLayout 格式化的分区起点结尾
// 例如 SuffixLayout 为 200601 时，2022-03-05 会路由到 t_order_202203
type Interval struct {
	Lower        time.Time
	Upper        time.Time
	Unit         IntervalUnit
	Amount       int
	SuffixLayout string
	// ValueLayout 解析字符串类型的分片值，默认 time.DateTime
	ValueLayout string
}

func (iv Interval) step(t time.Time) time.Time {
	amount := iv.Amount
	if amount <= 0 {
		amount = 1
	}
	switch iv.Unit {
	case IntervalMonth:
		return t.AddDate(0, amount, 0)
	case IntervalYear:
		return t.AddDate(amount, 0, 0)
	default:
		return t.AddDate(0, 0, amount)
	}
}

func (iv Interval) layout() string {
	if iv.ValueLayout == "" {
		return time.DateTime
	}
	return iv.ValueLayout
}

// floor 找到 t 所在分区的起点
func (iv Interval) floor(t time.Time) time.Time {
	cur := iv.Lower
	for {
		next := iv.step(cur)
		if next.After(t) {
			return cur
		}
		cur = next
	}
}

func (iv Interval) match(targets []string, start time.Time) (string, bool) {
	suffix := start.Format(iv.SuffixLayout)
	for _, t := range targets {
		if len(t) >= len(suffix) && t[len(t)-len(suffix):] == suffix {
			return t, true
		}
	}
	return "", false
}

func (iv Interval) DoSharding(targets []string, val sharding.PreciseValue) (string, error) {
	t, err := toTime(val.Value, iv.layout())
	if err != nil {
		return "", err
	}
	if t.Before(iv.Lower) || t.After(iv.Upper) {
		return "", fmt.Errorf("algorithm: 时间 %v 超出分片区间 [%v, %v]", t, iv.Lower, iv.Upper)
	}
	res, ok := iv.match(targets, iv.floor(t))
	if !ok {
		return "", fmt.Errorf("algorithm: 时间 %v 找不到对应的目标", t)
	}
	return res, nil
}

func (iv Interval) DoRangeSharding(targets []string, val sharding.RangeValue) ([]string, error) {
	lower, err := toTime(val.Lower, iv.layout())
	if err != nil {
		return nil, err
	}
	upper, err := toTime(val.Upper, iv.layout())
	if err != nil {
		return nil, err
	}
	if lower.Before(iv.Lower) {
		lower = iv.Lower
	}
	if upper.After(iv.Upper) {
		upper = iv.Upper
	}
	if lower.After(upper) {
		return nil, nil
	}
	var res []string
	for cur := iv.floor(lower); !cur.After(upper); cur = iv.step(cur) {
		if t, ok := iv.match(targets, cur); ok {
			res = appendUnique(res, t)
		}
	}
	return res, nil
}
