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

// Hint 显式传入的路由提示，替代隐式的线程上下文
type Hint struct {
	// DataSource 不为空的时候，强制路由到该数据源
	DataSource string
	// DatabaseValues 逻辑表 -> 数据源维度的分片值
	DatabaseValues map[string][]any
	// TableValues 逻辑表 -> 表维度的分片值
	TableValues map[string][]any
}

// IsEmpty 没有任何提示
func (h *Hint) IsEmpty() bool {
	return h == nil || (h.DataSource == "" && len(h.DatabaseValues) == 0 && len(h.TableValues) == 0)
}
