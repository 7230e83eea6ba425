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
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/go-sql-driver/mysql"
)

// Dialect 物理库的方言，决定 driver 是否受支持以及 DSN 怎么校验
type Dialect struct {
	Name   string
	Driver string
}

var (
	MySQL = Dialect{
		Name:   "MySQL",
		Driver: "mysql",
	}
	SQLite = Dialect{
		Name:   "SQLite",
		Driver: "sqlite3",
	}
)

var dialects = []Dialect{MySQL, SQLite}

// Of 根据 driver 名字找到方言
func Of(driver string) (Dialect, error) {
	for _, d := range dialects {
		if d.Driver == driver {
			return d, nil
		}
	}
	return Dialect{}, errs.NewUnsupportedDriverError(driver)
}

// CheckDSN 在打开连接池之前校验 DSN，sqlite3 的 DSN 就是文件名，不校验
func (d Dialect) CheckDSN(dsn string) error {
	if d.Driver != MySQL.Driver {
		return nil
	}
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return errs.NewInvalidDSNError(dsn, err)
	}
	return nil
}
