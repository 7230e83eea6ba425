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

import "github.com/ecodeclub/eshard/internal/errs"

var (
	ErrEmptyStatement            = errs.ErrEmptyStatement
	ErrInsertFindingDst          = errs.ErrInsertFindingDst
	ErrNotFoundTargetDataSource  = errs.ErrNotFoundTargetDataSource
	ErrExecutorNotConfigured     = errs.ErrExecutorNotConfigured
	ErrPlanNotQuery              = errs.ErrPlanNotQuery
	ErrPlanIsQuery               = errs.ErrPlanIsQuery
	ErrKeyGeneratorNotConfigured = errs.ErrKeyGeneratorNotConfigured
)

// 调用方使用 errors.As 判断的错误类型
type (
	NoTargetFoundError          = errs.NoTargetFoundError
	AmbiguousShardingValueError = errs.AmbiguousShardingValueError
	RouteAlgorithmError         = errs.RouteAlgorithmError
	InvalidRuleError            = errs.InvalidRuleError
	TokenOverlapError           = errs.TokenOverlapError
	TokenRangeError             = errs.TokenRangeError
)
