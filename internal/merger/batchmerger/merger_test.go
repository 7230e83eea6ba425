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

package batchmerger

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/rows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MergerSuite struct {
	suite.Suite
	mockDB01 *sql.DB
	mock01   sqlmock.Sqlmock
	mockDB02 *sql.DB
	mock02   sqlmock.Sqlmock
	mockDB03 *sql.DB
	mock03   sqlmock.Sqlmock
}

func (ms *MergerSuite) SetupTest() {
	var err error
	ms.mockDB01, ms.mock01, err = sqlmock.New()
	require.NoError(ms.T(), err)
	ms.mockDB02, ms.mock02, err = sqlmock.New()
	require.NoError(ms.T(), err)
	ms.mockDB03, ms.mock03, err = sqlmock.New()
	require.NoError(ms.T(), err)
}

func (ms *MergerSuite) TearDownTest() {
	_ = ms.mockDB01.Close()
	_ = ms.mockDB02.Close()
	_ = ms.mockDB03.Close()
}

func (ms *MergerSuite) query(mockRows ...*sqlmock.Rows) []rows.Rows {
	dbs := []*sql.DB{ms.mockDB01, ms.mockDB02, ms.mockDB03}
	mocks := []sqlmock.Sqlmock{ms.mock01, ms.mock02, ms.mock03}
	res := make([]rows.Rows, 0, len(mockRows))
	for i, r := range mockRows {
		mocks[i].ExpectQuery("SELECT *").WillReturnRows(r)
		rs, err := dbs[i].QueryContext(context.Background(), "SELECT * FROM `t_order`")
		require.NoError(ms.T(), err)
		res = append(res, rs)
	}
	return res
}

func (ms *MergerSuite) TestMerger_Merge() {
	testCases := []struct {
		name    string
		rows    func() []rows.Rows
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{
			name: "结果集列表为空",
			rows: func() []rows.Rows {
				return nil
			},
			wantErr: errs.ErrMergerEmptyRows,
		},
		{
			name: "结果集列表有nil",
			rows: func() []rows.Rows {
				return []rows.Rows{nil}
			},
			wantErr: errs.ErrMergerRowsIsNull,
		},
		{
			name: "结果集的列数不同",
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a"),
					sqlmock.NewRows([]string{"id"}).AddRow(2))
			},
			wantErr: errs.ErrMergerRowsDiff,
		},
		{
			name: "超时",
			rows: func() []rows.Rows {
				return ms.query(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 0)
			},
			wantErr: context.DeadlineExceeded,
		},
	}
	for _, tc := range testCases {
		ms.T().Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			if tc.ctx != nil {
				ctx, cancel = tc.ctx()
			}
			defer cancel()
			_, err := Merger{}.Merge(ctx, tc.rows())
			assert.Equal(t, tc.wantErr, err)
		})
	}
}

func (ms *MergerSuite) TestRows_Next() {
	cols := []string{"id", "name"}
	testCases := []struct {
		name     string
		rows     func() []rows.Rows
		wantIds  []int
		wantName []string
	}{
		{
			name: "按照结果集的顺序依次输出",
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(3, "c").AddRow(1, "a"),
					sqlmock.NewRows(cols).AddRow(2, "b"),
					sqlmock.NewRows(cols).AddRow(5, "e").AddRow(4, "d"))
			},
			wantIds:  []int{3, 1, 2, 5, 4},
			wantName: []string{"c", "a", "b", "e", "d"},
		},
		{
			name: "中间有空结果集",
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(1, "a"),
					sqlmock.NewRows(cols),
					sqlmock.NewRows(cols).AddRow(2, "b"))
			},
			wantIds:  []int{1, 2},
			wantName: []string{"a", "b"},
		},
		{
			name: "全部为空",
			rows: func() []rows.Rows {
				return ms.query(sqlmock.NewRows(cols), sqlmock.NewRows(cols))
			},
			wantIds:  []int{},
			wantName: []string{},
		},
	}
	for _, tc := range testCases {
		ms.T().Run(tc.name, func(t *testing.T) {
			rs, err := Merger{}.Merge(context.Background(), tc.rows())
			require.NoError(t, err)
			ids := make([]int, 0, len(tc.wantIds))
			names := make([]string, 0, len(tc.wantName))
			for rs.Next() {
				var id int
				var name string
				require.NoError(t, rs.Scan(&id, &name))
				ids = append(ids, id)
				names = append(names, name)
			}
			require.NoError(t, rs.Err())
			assert.Equal(t, tc.wantIds, ids)
			assert.Equal(t, tc.wantName, names)
			assert.Equal(t, errs.ErrMergerRowsClosed, rs.Scan())
		})
	}
}

func (ms *MergerSuite) TestRows_Value() {
	cols := []string{"id", "name"}
	rs, err := Merger{}.Merge(context.Background(), ms.query(
		sqlmock.NewRows(cols).AddRow(1, "a"),
		sqlmock.NewRows(cols).AddRow(2, "b")))
	require.NoError(ms.T(), err)
	_, err = rs.Value(0)
	assert.Equal(ms.T(), errs.ErrMergerScanNotNext, err)

	require.True(ms.T(), rs.Next())
	val, err := rs.Value(1)
	require.NoError(ms.T(), err)
	assert.Equal(ms.T(), "a", val)
	// Value 之后 Scan 使用缓存的数据
	var id int
	var name string
	require.NoError(ms.T(), rs.Scan(&id, &name))
	assert.Equal(ms.T(), 1, id)
	_, err = rs.Value(5)
	assert.Equal(ms.T(), errs.NewInvalidColumnIndex(5, 2), err)

	require.True(ms.T(), rs.Next())
	val, err = rs.Value(0)
	require.NoError(ms.T(), err)
	assert.Equal(ms.T(), int64(2), val)
	require.NoError(ms.T(), rs.Close())
	assert.False(ms.T(), rs.Next())
}

func (ms *MergerSuite) TestRows_NextErr() {
	mockErr := errors.New("rows: MockNextErr")
	cols := []string{"id"}
	rs, err := Merger{}.Merge(context.Background(), ms.query(
		sqlmock.NewRows(cols).AddRow(1).AddRow(2).RowError(1, mockErr),
		sqlmock.NewRows(cols).AddRow(3)))
	require.NoError(ms.T(), err)
	ids := make([]int, 0, 2)
	for rs.Next() {
		var id int
		require.NoError(ms.T(), rs.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(ms.T(), []int{1}, ids)
	assert.Equal(ms.T(), mockErr, rs.Err())
	var id int
	assert.Equal(ms.T(), mockErr, rs.Scan(&id))
}

func TestMerger(t *testing.T) {
	suite.Run(t, &MergerSuite{})
}
