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

package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyStatement             = errors.New("eshard: 语句为空")
	ErrInsertFindingDst           = errors.New("eshard: 一行数据只能插入一个表")
	ErrInsertWithoutValues        = errors.New("eshard: insert 语句没有 VALUES")
	ErrNotFoundTargetDataSource   = errors.New("eshard: 未发现目标 data source")
	ErrExecutorNotConfigured      = errors.New("eshard: 未配置 data source，无法执行语句")
	ErrPlanNotQuery               = errors.New("eshard: 该执行计划不是查询语句")
	ErrPlanIsQuery                = errors.New("eshard: 查询语句请使用 Query 方法")
	ErrKeyGeneratorNotConfigured  = errors.New("eshard: 未配置主键生成器")
	ErrUnsupportedTooComplexQuery = errors.New("eshard: 暂未支持太复杂的查询")
	ErrScanNotNext                = errors.New("eshard: Scan 之前没有调用 Next 方法")
	ErrSlaveNotFound              = errors.New("eshard: slave不存在")
)

func NewErrScanWrongDestinationArguments(expect int, actual int) error {
	return fmt.Errorf("eshard: Scan 方法收到过多或者过少的参数，预期 %d，实际 %d", expect, actual)
}

func NewInvalidColumnIndexError(index, count int) error {
	return fmt.Errorf("eshard: 列下标 %d 越界，共 %d 列", index, count)
}

// NoTargetFoundError 表示配置层面找不到逻辑表或者数据源的目标
// 例如逻辑表没有配置、又没有默认数据源
type NoTargetFoundError struct {
	Table  string
	Reason string
}

func (e *NoTargetFoundError) Error() string {
	return fmt.Sprintf("eshard: 逻辑表 %s 找不到路由目标: %s", e.Table, e.Reason)
}

func NewNoTargetFoundError(table, reason string) error {
	return &NoTargetFoundError{Table: table, Reason: reason}
}

// AmbiguousShardingValueError 同一个分片列上出现了互相冲突的等值条件
type AmbiguousShardingValueError struct {
	Table  string
	Column string
	Values []any
}

func (e *AmbiguousShardingValueError) Error() string {
	return fmt.Sprintf("eshard: 分片列 %s.%s 上有冲突的等值条件 %v", e.Table, e.Column, e.Values)
}

func NewAmbiguousShardingValueError(table, column string, values []any) error {
	return &AmbiguousShardingValueError{Table: table, Column: column, Values: values}
}

// RouteAlgorithmError 分片算法返回了空结果或者不在配置里的目标
// 和配置错误区分开，说明是算法实现本身有问题
type RouteAlgorithmError struct {
	Table   string
	Targets []string
	Result  []string
	Cause   error
}

func (e *RouteAlgorithmError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("eshard: 逻辑表 %s 的分片算法执行失败: %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("eshard: 逻辑表 %s 的分片算法返回了非法目标 %v，可选目标 %v", e.Table, e.Result, e.Targets)
}

func (e *RouteAlgorithmError) Unwrap() error {
	return e.Cause
}

func NewRouteAlgorithmError(table string, targets, result []string, cause error) error {
	return &RouteAlgorithmError{Table: table, Targets: targets, Result: result, Cause: cause}
}

// InvalidRuleError 分片规则本身不合法，在构造规则的时候返回
type InvalidRuleError struct {
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return "eshard: 不合法的分片规则: " + e.Reason
}

func NewInvalidRuleError(format string, args ...any) error {
	return &InvalidRuleError{Reason: fmt.Sprintf(format, args...)}
}

// TokenOverlapError 同一个路由单元上的改写 token 出现重叠
// 这是内部 bug，必须带上完整上下文
type TokenOverlapError struct {
	SQL    string
	Tokens []string
	Index  int
}

func (e *TokenOverlapError) Error() string {
	return fmt.Sprintf("eshard: 第 %d 个改写 token 与前一个重叠, sql: %s, tokens: [%s]",
		e.Index, e.SQL, strings.Join(e.Tokens, ", "))
}

func NewTokenOverlapError(sql string, tokens []string, index int) error {
	return &TokenOverlapError{SQL: sql, Tokens: tokens, Index: index}
}

// TokenRangeError 改写 token 的下标超出了原始 SQL 的范围
type TokenRangeError struct {
	SQL   string
	Token string
}

func (e *TokenRangeError) Error() string {
	return fmt.Sprintf("eshard: 改写 token %s 超出 SQL 范围, sql: %s", e.Token, e.SQL)
}

func NewTokenRangeError(sql string, token string) error {
	return &TokenRangeError{SQL: sql, Token: token}
}

func NewErrUpdateShardingKeyUnsupported(field string) error {
	return fmt.Errorf("eshard: ShardingKey `%s` 不支持更新", field)
}

func NewErrNotFoundTargetDataSource(name string) error {
	return fmt.Errorf("%w %s", ErrNotFoundTargetDataSource, name)
}

func NewUnsupportedDriverError(driver string) error {
	return fmt.Errorf("eshard: 不支持driver类型 %s", driver)
}

func NewInvalidDSNError(dsn string, err error) error {
	return fmt.Errorf("eshard: 不正确的 DSN %s: %w", dsn, err)
}

func NewInvalidParameterIndexError(idx, count int) error {
	return fmt.Errorf("eshard: 参数下标 %d 越界，共 %d 个参数", idx, count)
}

func NewInvalidPaginationError(val any) error {
	return fmt.Errorf("eshard: 分页参数必须是非负整数，实际 %v", val)
}
