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
	"reflect"
	"strconv"
	"strings"

	"github.com/ecodeclub/eshard/internal/rows"
)

var rawBytesType = reflect.TypeOf(sql.RawBytes{})

// Scan 按照列的 ScanType 读取当前行
// sql.RawBytes 会被拷贝成 []byte，DECIMAL 列转成数值
func Scan(row rows.Rows) ([]any, error) {
	colsInfo, err := row.ColumnTypes()
	if err != nil {
		return nil, err
	}
	colsData := make([]any, 0, len(colsInfo))
	// 拿到字段的类型然后初始化
	for _, colInfo := range colsInfo {
		colsData = append(colsData, newDest(colInfo.ScanType()))
	}
	if err = row.Scan(colsData...); err != nil {
		return nil, err
	}
	// 去掉reflect.New的指针
	for i := 0; i < len(colsData); i++ {
		val := reflect.ValueOf(colsData[i]).Elem().Interface()
		if b, ok := val.([]byte); ok && isDecimal(colsInfo[i].DatabaseTypeName()) {
			val = decimalValue(b)
		}
		colsData[i] = val
	}
	return colsData, nil
}

func newDest(typ reflect.Type) any {
	if typ == nil {
		return new(any)
	}
	// sqlite3的驱动返回的是指针。循环的去除指针
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	// RawBytes 指向驱动的缓冲区，下一次 Next 就会被覆盖
	if typ == rawBytesType {
		return new([]byte)
	}
	return reflect.New(typ).Interface()
}

func isDecimal(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "DECIMAL", "NUMERIC", "NEWDECIMAL":
		return true
	default:
		return false
	}
}

// decimalValue MySQL 把 DECIMAL 当成文本返回，整数保持为 int64，其余转成 float64
func decimalValue(b []byte) any {
	if b == nil {
		return nil
	}
	s := string(b)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
