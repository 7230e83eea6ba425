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

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandInline 展开行表达式
// 支持 ${0..3} 区间和 ${[a, b]} 枚举，多个片段之间做笛卡尔积
// 顶层逗号分隔多个表达式，例如 ds_${0..1}.t_order_${0..1}, ds_2.t_order_0
func ExpandInline(expr string) ([]string, error) {
	parts, err := splitTopLevel(expr)
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		vals, err := expandOne(p)
		if err != nil {
			return nil, err
		}
		res = append(res, vals...)
	}
	return res, nil
}

func splitTopLevel(expr string) ([]string, error) {
	var res []string
	depth := 0
	last := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("eshard: 行表达式括号不匹配 %s", expr)
			}
		case ',':
			if depth == 0 {
				res = append(res, expr[last:i])
				last = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("eshard: 行表达式括号不匹配 %s", expr)
	}
	return append(res, expr[last:]), nil
}

func expandOne(expr string) ([]string, error) {
	start := strings.Index(expr, "${")
	if start < 0 {
		return []string{expr}, nil
	}
	end := strings.IndexByte(expr[start:], '}')
	if end < 0 {
		return nil, fmt.Errorf("eshard: 行表达式括号不匹配 %s", expr)
	}
	end += start
	items, err := segmentValues(expr[start+2 : end])
	if err != nil {
		return nil, err
	}
	rest, err := expandOne(expr[end+1:])
	if err != nil {
		return nil, err
	}
	prefix := expr[:start]
	res := make([]string, 0, len(items)*len(rest))
	for _, item := range items {
		for _, r := range rest {
			res = append(res, prefix+item+r)
		}
	}
	return res, nil
}

func segmentValues(seg string) ([]string, error) {
	seg = strings.TrimSpace(seg)
	if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
		var res []string
		for _, item := range strings.Split(seg[1:len(seg)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			if item != "" {
				res = append(res, item)
			}
		}
		return res, nil
	}
	lo, hi, ok := strings.Cut(seg, "..")
	if !ok {
		return nil, fmt.Errorf("eshard: 无法识别的行表达式片段 %s", seg)
	}
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("eshard: 无法识别的行表达式片段 %s: %w", seg, err)
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("eshard: 无法识别的行表达式片段 %s: %w", seg, err)
	}
	if to < from {
		return nil, fmt.Errorf("eshard: 行表达式区间 %s 上界小于下界", seg)
	}
	res := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		res = append(res, strconv.Itoa(i))
	}
	return res, nil
}
