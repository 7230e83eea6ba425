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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecodeclub/eshard/internal/datasource"
	"github.com/ecodeclub/eshard/internal/datasource/masterslave/slaves"
	"github.com/ecodeclub/eshard/internal/datasource/masterslave/slaves/roundrobin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func ExampleMasterSlavesDB_Close() {
	masterDB, _ := sql.Open("sqlite3", "file:test.db?cache=shared&mode=memory")
	slaveDB1, _ := sql.Open("sqlite3", "file:test.db?cache=shared&mode=memory")
	slaveDB2, _ := sql.Open("sqlite3", "file:test.db?cache=shared&mode=memory")
	ms := NewMasterSlavesDB(masterDB, MasterSlavesWithSlaves(roundrobin.NewSlaves(slaveDB1, slaveDB2)))
	err := ms.Close()
	if err == nil {
		fmt.Println("close")
	}

	// Output:
	// close
}

type MasterSlaveSuite struct {
	suite.Suite
	mockMasterDB *sql.DB
	mockMaster   sqlmock.Sqlmock
	mockSlave1DB *sql.DB
	mockSlave1   sqlmock.Sqlmock
	mockSlave2DB *sql.DB
	mockSlave2   sqlmock.Sqlmock
}

func (ms *MasterSlaveSuite) SetupTest() {
	t := ms.T()
	var err error
	ms.mockMasterDB, ms.mockMaster, err = sqlmock.New()
	require.NoError(t, err)
	ms.mockSlave1DB, ms.mockSlave1, err = sqlmock.New()
	require.NoError(t, err)
	ms.mockSlave2DB, ms.mockSlave2, err = sqlmock.New()
	require.NoError(t, err)
}

func (ms *MasterSlaveSuite) TearDownTest() {
	_ = ms.mockMasterDB.Close()
	_ = ms.mockSlave1DB.Close()
	_ = ms.mockSlave2DB.Close()
}

func (ms *MasterSlaveSuite) TestQuery() {
	// 通过查询不同的数据区分访问的库
	mark := func(val string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"mark"}).AddRow(val)
	}
	ms.mockMaster.ExpectQuery("SELECT *").WillReturnRows(mark("master"))
	ms.mockMaster.ExpectQuery("SELECT *").WillReturnRows(mark("master"))
	ms.mockSlave1.ExpectQuery("SELECT *").WillReturnRows(mark("slave_1"))
	ms.mockSlave1.ExpectQuery("SELECT *").WillReturnRows(mark("slave_1"))
	ms.mockSlave2.ExpectQuery("SELECT *").WillReturnRows(mark("slave_2"))

	testCases := []struct {
		name     string
		ctx      context.Context
		reqCnt   int
		slaves   slaves.Slaves
		wantResp []string
		wantErr  error
	}{
		{
			name:     "默认使用副本",
			ctx:      context.Background(),
			reqCnt:   3,
			slaves:   roundrobin.NewSlaves(ms.mockSlave1DB, ms.mockSlave2DB),
			wantResp: []string{"slave_1", "slave_2", "slave_1"},
		},
		{
			name:     "强制使用主库",
			ctx:      UseMaster(context.Background()),
			reqCnt:   1,
			slaves:   roundrobin.NewSlaves(ms.mockSlave1DB, ms.mockSlave2DB),
			wantResp: []string{"master"},
		},
		{
			name:     "没有副本",
			ctx:      context.Background(),
			reqCnt:   1,
			wantResp: []string{"master"},
		},
		{
			name: "ctx 已经取消",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			reqCnt:  1,
			slaves:  roundrobin.NewSlaves(ms.mockSlave1DB),
			wantErr: context.Canceled,
		},
	}
	for _, tc := range testCases {
		ms.T().Run(tc.name, func(t *testing.T) {
			var opts []MasterSlavesDBOption
			if tc.slaves != nil {
				opts = append(opts, MasterSlavesWithSlaves(tc.slaves))
			}
			db := NewMasterSlavesDB(ms.mockMasterDB, opts...)
			resp := make([]string, 0, tc.reqCnt)
			for i := 0; i < tc.reqCnt; i++ {
				rows, err := db.Query(tc.ctx, datasource.Query{SQL: "SELECT `mark` FROM `t_config`"})
				assert.Equal(t, tc.wantErr, err)
				if err != nil {
					return
				}
				require.True(t, rows.Next())
				var val string
				require.NoError(t, rows.Scan(&val))
				resp = append(resp, val)
				require.NoError(t, rows.Close())
			}
			assert.Equal(t, tc.wantResp, resp)
		})
	}
}

func (ms *MasterSlaveSuite) TestQuery_Fallback() {
	t := ms.T()
	ms.mockMaster.ExpectQuery("SELECT *").WillReturnRows(sqlmock.NewRows([]string{"mark"}).AddRow("master"))
	ms.mockMaster.ExpectQuery("SELECT *").WillReturnRows(sqlmock.NewRows([]string{"mark"}).AddRow("master"))
	badDB := sql.OpenDB(badConnector{})
	defer func() {
		_ = badDB.Close()
	}()

	testCases := []struct {
		name   string
		slaves slaves.Slaves
	}{
		{
			name:   "副本连接失效",
			slaves: roundrobin.NewSlaves(badDB),
		},
		{
			name:   "副本列表为空",
			slaves: roundrobin.NewSlaves(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := NewMasterSlavesDB(ms.mockMasterDB, MasterSlavesWithSlaves(tc.slaves))
			rows, err := db.Query(context.Background(), datasource.Query{SQL: "SELECT `mark` FROM `t_config`"})
			require.NoError(t, err)
			require.True(t, rows.Next())
			var val string
			require.NoError(t, rows.Scan(&val))
			assert.Equal(t, "master", val)
			require.NoError(t, rows.Close())
		})
	}
}

func (ms *MasterSlaveSuite) TestExec() {
	t := ms.T()
	ms.mockMaster.ExpectExec("^INSERT INTO (.+)").WillReturnResult(sqlmock.NewResult(1, 1))
	db := NewMasterSlavesDB(ms.mockMasterDB, MasterSlavesWithSlaves(roundrobin.NewSlaves(ms.mockSlave1DB)))
	res, err := db.Exec(context.Background(), datasource.Query{
		SQL:  "INSERT INTO `t_config` (`id`) VALUES (?)",
		Args: []any{1},
	})
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, ms.mockSlave1.ExpectationsWereMet())
}

// badConnector 每次建立连接都返回 ErrBadConn
type badConnector struct{}

func (badConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, driver.ErrBadConn
}

func (badConnector) Driver() driver.Driver {
	return nil
}

func TestMasterSlaveSuite(t *testing.T) {
	suite.Run(t, &MasterSlaveSuite{})
}

func TestMasterSlavesDB_Close(t *testing.T) {
	masterDB, master, err := sqlmock.New()
	require.NoError(t, err)
	slaveDB, slave, err := sqlmock.New()
	require.NoError(t, err)
	master.ExpectClose().WillReturnError(errors.New("master close"))
	slave.ExpectClose().WillReturnError(errors.New("slave close"))
	db := NewMasterSlavesDB(masterDB, MasterSlavesWithSlaves(roundrobin.NewSlaves(slaveDB)))
	err = db.Close()
	assert.EqualError(t, err, "master error: master close; slave DB name [0] error: slave close")
}
