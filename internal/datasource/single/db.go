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

package single

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/dialect"
	"github.com/golang/glog"
)

var _ datasource.DataSource = &DB{}

// DB 单个物理库
type DB struct {
	db *sql.DB
}

func (db *DB) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query.SQL, query.Args...)
}

func (db *DB) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	return db.db.ExecContext(ctx, query.SQL, query.Args...)
}

// OpenDB 打开一个物理库，mysql 的 DSN 会先校验
func OpenDB(driverName string, dsn string) (*DB, error) {
	db, err := Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// Open 校验 driver 和 DSN 之后打开连接池
func Open(driverName string, dsn string) (*sql.DB, error) {
	d, err := dialect.Of(driverName)
	if err != nil {
		return nil, err
	}
	if err = d.CheckDSN(dsn); err != nil {
		return nil, err
	}
	return sql.Open(driverName, dsn)
}

func NewDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Wait 会等待数据库连接
// 注意只能用于测试
func (db *DB) Wait() error {
	err := db.db.Ping()
	for errors.Is(err, driver.ErrBadConn) {
		glog.Infof("等待数据库启动...")
		time.Sleep(time.Second)
		err = db.db.Ping()
	}
	return err
}

func (db *DB) Close() error {
	return db.db.Close()
}
