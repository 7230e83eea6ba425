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

package masterslave

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/datasource/masterslave/slaves"
	"github.com/ecodeclub/eshard/internal/errs"
	"github.com/golang/glog"
	"go.uber.org/multierr"
)

var _ datasource.DataSource = &MasterSlavesDB{}

// MasterSlavesDB 一个逻辑数据源背后的主库和只读副本
// 写语句总是发往主库，查询默认轮询副本，没有可用副本的时候发往主库
type MasterSlavesDB struct {
	master *sql.DB
	slaves slaves.Slaves
}

type key string

const (
	master key = "master"
)

func (m *MasterSlavesDB) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	db, name, err := m.reader(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil && db != m.master && errors.Is(err, driver.ErrBadConn) {
		// 副本不可用的时候退回主库
		glog.Warningf("eshard: 副本 %s 不可用，查询改为发往主库: %v", name, err)
		return m.master.QueryContext(ctx, query.SQL, query.Args...)
	}
	return rows, err
}

// reader 挑选执行查询的库，返回库和它的名字
func (m *MasterSlavesDB) reader(ctx context.Context) (*sql.DB, string, error) {
	if useMaster, _ := ctx.Value(master).(bool); useMaster || m.slaves == nil {
		return m.master, string(master), nil
	}
	slave, err := m.slaves.Next(ctx)
	if errors.Is(err, errs.ErrSlaveNotFound) {
		return m.master, string(master), nil
	}
	if err != nil {
		return nil, "", err
	}
	if glog.V(2) {
		glog.Infof("eshard: 查询发往副本 %s", slave.SlaveName)
	}
	return slave.DB, slave.SlaveName, nil
}

func (m *MasterSlavesDB) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	return m.master.ExecContext(ctx, query.SQL, query.Args...)
}

func NewMasterSlavesDB(master *sql.DB, opts ...MasterSlavesDBOption) *MasterSlavesDB {
	db := &MasterSlavesDB{
		master: master,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (m *MasterSlavesDB) Close() error {
	var err error
	if er := m.master.Close(); er != nil {
		err = multierr.Combine(
			err, fmt.Errorf("master error: %w", er))
	}
	if m.slaves != nil {
		if er := m.slaves.Close(); er != nil {
			err = multierr.Combine(err, er)
		}
	}
	return err
}

type MasterSlavesDBOption func(db *MasterSlavesDB)

func MasterSlavesWithSlaves(s slaves.Slaves) MasterSlavesDBOption {
	return func(db *MasterSlavesDB) {
		db.slaves = s
	}
}

// UseMaster 强制查询发往主库，例如刚写入之后马上读取
func UseMaster(ctx context.Context) context.Context {
	return context.WithValue(ctx, master, true)
}
