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

package dialect

import (
	"testing"

	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	testCases := []struct {
		driver  string
		want    Dialect
		wantErr error
	}{
		{driver: "mysql", want: MySQL},
		{driver: "sqlite3", want: SQLite},
		{driver: "oracle", wantErr: errs.NewUnsupportedDriverError("oracle")},
	}
	for _, tc := range testCases {
		t.Run(tc.driver, func(t *testing.T) {
			d, err := Of(tc.driver)
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.want, d)
		})
	}
}

func TestDialect_CheckDSN(t *testing.T) {
	testCases := []struct {
		name    string
		d       Dialect
		dsn     string
		wantErr string
	}{
		{
			name: "mysql",
			d:    MySQL,
			dsn:  "root:root@tcp(localhost:13306)/order_db_0",
		},
		{
			name:    "mysql 缺少右括号",
			d:       MySQL,
			dsn:     "root:root@tcp(localhost:13306/order_db_0",
			wantErr: "eshard: 不正确的 DSN root:root@tcp(localhost:13306/order_db_0",
		},
		{
			name:    "mysql 缺少数据库",
			d:       MySQL,
			dsn:     "order_db_0",
			wantErr: "eshard: 不正确的 DSN order_db_0",
		},
		{
			name: "sqlite3 不校验",
			d:    SQLite,
			dsn:  "file:test.db?cache=shared&mode=memory",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.CheckDSN(tc.dsn)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
