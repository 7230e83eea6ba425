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

package merger

import (
	"context"

	"github.com/ecodeclub/eshard/internal/rows"
)

// Merger 将多个路由单元的结果集合并，返回一个类似 sql.Rows 的迭代器
// 每个结果集仅支持单个结果集，并且列必须完全相同
type Merger interface {
	Merge(ctx context.Context, results []rows.Rows) (Rows, error)
}

// Rows 归并之后的结果集
// 只能被一个 goroutine 使用
type Rows interface {
	rows.Rows
	// Value 当前行第 index 列的值
	Value(index int) (any, error)
}

var _ Rows = (*rows.DataRows)(nil)
