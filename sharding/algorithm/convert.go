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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var errEmptyTargets = errors.New("algorithm: 可选目标为空")

// toInt64 把分片值转成整数
// 数据库驱动和调用方传进来的类型五花八门，这里尽量兼容
func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("algorithm: 分片值 %d 溢出", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("algorithm: 分片值 %v 不是整数", v)
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, fmt.Errorf("algorithm: 不支持的分片值类型 %T", val)
	}
}

// suffixOf 取目标名字末尾的数字，没有数字返回 -1
func suffixOf(target string) int64 {
	i := len(target)
	for i > 0 && target[i-1] >= '0' && target[i-1] <= '9' {
		i--
	}
	if i == len(target) {
		return -1
	}
	n, err := strconv.ParseInt(target[i:], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// matchSuffix 找到数字后缀恰好等于 idx 的目标
func matchSuffix(targets []string, idx int64) (string, error) {
	if len(targets) == 0 {
		return "", errEmptyTargets
	}
	for _, t := range targets {
		if suffixOf(t) == idx {
			return t, nil
		}
	}
	return "", fmt.Errorf("algorithm: 在 %v 中找不到后缀为 %d 的目标", targets, idx)
}

func appendUnique(dst []string, t string) []string {
	for _, d := range dst {
		if d == t {
			return dst
		}
	}
	return append(dst, t)
}

func toTime(val any, layout string) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.ParseInLocation(layout, v, time.Local)
	case []byte:
		return time.ParseInLocation(layout, string(v), time.Local)
	default:
		return time.Time{}, fmt.Errorf("algorithm: 不支持的时间分片值类型 %T", val)
	}
}
