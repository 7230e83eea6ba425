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

package eshard

import (
	"github.com/ecodeclub/eshard/internal/executor"
	"github.com/ecodeclub/eshard/internal/merger"
	"github.com/ecodeclub/eshard/internal/rewrite"
	"github.com/ecodeclub/eshard/internal/rows"
)

// Rows 单个路由单元的结果集，*sql.Rows 实现了该接口
type Rows = rows.Rows

// MergedRows 归并之后的结果集，只能被一个 goroutine 使用
type MergedRows = merger.Rows

// RewriteUnit 改写之后可以直接执行的物理 SQL
type RewriteUnit = rewrite.Unit

type (
	QueryContext = executor.QueryContext
	QueryResult  = executor.QueryResult
	HandleFunc   = executor.HandleFunc
	Middleware   = executor.Middleware
)
