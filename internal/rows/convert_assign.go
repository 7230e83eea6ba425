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

package rows

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	_ "unsafe"
)

//go:linkname sqlConvertAssign database/sql.convertAssign
func sqlConvertAssign(dest, src any) error

// ConvertAssign 把归并时缓存的值赋给 Scan 的参数，其余规则和 database/sql 一致
// 缓存的值来自不同的分片，可能是 sql.NullXxx 这种 driver.Valuer
func ConvertAssign(dest, src any) error {
	if valuer, ok := src.(driver.Valuer); ok {
		v, err := valuer.Value()
		if err != nil {
			return err
		}
		src = v
	}
	switch d := dest.(type) {
	case *string:
		if b, ok := src.(sql.RawBytes); ok {
			*d = string(b)
			return nil
		}
	case *sql.RawBytes:
		// 缓存的行会被复用，不能把同一块内存交出去
		if b, ok := src.([]byte); ok && d != nil {
			*d = bytes.Clone(b)
			return nil
		}
	}
	return sqlConvertAssign(dest, src)
}
