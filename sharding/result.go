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

import "database/sql"

var _ sql.Result = Result{}

// Result 多个分片执行 DML 之后的汇总结果
type Result struct {
	err error
	res []sql.Result
}

func (m Result) Err() error {
	return m.err
}

func (m Result) SetErr(err error) Result {
	m.err = err
	return m
}

// LastInsertId 取所有分片里面最大的自增主键
func (m Result) LastInsertId() (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var maxID int64
	for _, r := range m.res {
		id, err := r.LastInsertId()
		if err != nil {
			return 0, err
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// RowsAffected 所有分片影响行数之和
func (m Result) RowsAffected() (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var sum int64
	for _, r := range m.res {
		n, err := r.RowsAffected()
		if err != nil {
			return 0, err
		}
		sum += n
	}
	return sum, nil
}

func NewResult(res []sql.Result) Result {
	return Result{res: res}
}
