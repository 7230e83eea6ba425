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

package utils

import (
	"database/sql"
	"database/sql/driver"
	"strconv"
	"time"
)

type Order bool

const (
	// ASC 升序排序
	ASC Order = true
	// DESC 降序排序
	DESC Order = false
)

type Ordered interface {
	~int64 | ~uint64 | ~float64 | ~string
}

func compare[T Ordered](i, j T) int {
	switch {
	case i < j:
		return -1
	case i > j:
		return 1
	default:
		return 0
	}
}

// Compare 比较两个列值
// 升序时 -1 表示 i 排在前面，降序时反过来；NULL 永远是最小值
func Compare(ii, jj any, order Order) int {
	res := compareAsc(Normalize(ii), Normalize(jj))
	if order == DESC {
		return -res
	}
	return res
}

func compareAsc(i, j any) int {
	if i == nil && j == nil {
		return 0
	}
	if i == nil {
		return -1
	}
	if j == nil {
		return 1
	}
	switch iv := i.(type) {
	case int64:
		switch jv := j.(type) {
		case int64:
			return compare(iv, jv)
		case uint64:
			if iv < 0 {
				return -1
			}
			return compare(uint64(iv), jv)
		case float64:
			return compare(float64(iv), jv)
		}
	case uint64:
		switch jv := j.(type) {
		case uint64:
			return compare(iv, jv)
		case int64:
			if jv < 0 {
				return 1
			}
			return compare(iv, uint64(jv))
		case float64:
			return compare(float64(iv), jv)
		}
	case float64:
		switch jv := j.(type) {
		case float64:
			return compare(iv, jv)
		case int64:
			return compare(iv, float64(jv))
		case uint64:
			return compare(iv, float64(jv))
		}
	case string:
		if jv, ok := j.(string); ok {
			return compare(iv, jv)
		}
	case time.Time:
		if jv, ok := j.(time.Time); ok {
			return iv.Compare(jv)
		}
	case bool:
		if jv, ok := j.(bool); ok {
			if iv == jv {
				return 0
			}
			if jv {
				return -1
			}
			return 1
		}
	}
	// 类型不一致的时候退化成字符串比较
	return compare(toString(i), toString(j))
}

// Normalize 把驱动返回的各种类型统一成 int64、uint64、float64、string、time.Time、bool
// NULL 统一成 nil
func Normalize(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return v
		}
		v = val
	}
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return uint64(val)
	case uint8:
		return uint64(val)
	case uint16:
		return uint64(val)
	case uint32:
		return uint64(val)
	case uint64:
		return val
	case float32:
		return float64(val)
	case float64:
		return val
	case []byte:
		// 文本列按照文本比较，和数据库的排序保持一致
		if val == nil {
			return nil
		}
		return string(val)
	case sql.RawBytes:
		if val == nil {
			return nil
		}
		return string(val)
	case string:
		return val
	case *any:
		if val == nil {
			return nil
		}
		return Normalize(*val)
	default:
		return v
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case sql.RawBytes:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
