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

package sortmerger

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecodeclub/eshard/internal/merger/internal/errs"
	"github.com/ecodeclub/eshard/internal/merger/utils"
	"github.com/ecodeclub/eshard/internal/rows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var nextMockErr = errors.New("rows: MockNextErr")

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

func (ms *MergerSuite) TestMerger_New() {
	_, err := NewMerger()
	assert.Equal(ms.T(), errs.ErrEmptySortColumns, err)
	m, err := NewMerger(NewSortColumn("id", utils.ASC), NewSortIndex(1, utils.DESC))
	require.NoError(ms.T(), err)
	assert.Equal(ms.T(), 2, m.Len())
}

func (ms *MergerSuite) TestMerger_Merge() {
	testCases := []struct {
		name     string
		sortCols []SortColumn
		rows     func() []rows.Rows
		ctx      func() (context.Context, context.CancelFunc)
		wantErr  error
	}{
		{
			name:     "结果集列表为空",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
			rows: func() []rows.Rows {
				return []rows.Rows{}
			},
			wantErr: errs.ErrMergerEmptyRows,
		},
		{
			name:     "结果集列表有nil",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
			rows: func() []rows.Rows {
				return []rows.Rows{nil}
			},
			wantErr: errs.ErrMergerRowsIsNull,
		},
		{
			name:     "结果集的列不同",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a"),
					sqlmock.NewRows([]string{"id", "email"}).AddRow(2, "b"))
			},
			wantErr: errs.ErrMergerRowsDiff,
		},
		{
			name:     "排序列不存在",
			sortCols: []SortColumn{NewSortColumn("age", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			wantErr: errs.NewInvalidSortColumn("age"),
		},
		{
			name:     "排序位置越界",
			sortCols: []SortColumn{NewSortIndex(3, utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			wantErr: errs.NewInvalidColumnIndex(3, 1),
		},
		{
			name:     "超时",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
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
			m, err := NewMerger(tc.sortCols...)
			require.NoError(t, err)
			ctx, cancel := context.WithCancel(context.Background())
			if tc.ctx != nil {
				ctx, cancel = tc.ctx()
			}
			defer cancel()
			_, err = m.Merge(ctx, tc.rows())
			assert.Equal(t, tc.wantErr, err)
		})
	}
}

type order struct {
	id     int
	userId int
	amount float64
}

func (ms *MergerSuite) TestRows_Next() {
	cols := []string{"id", "user_id", "amount"}
	testCases := []struct {
		name      string
		sortCols  []SortColumn
		rows      func() []rows.Rows
		wantOrder []order
	}{
		{
			name:     "单列升序",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(1, 10, 1.5).AddRow(5, 10, 2.5),
					sqlmock.NewRows(cols).AddRow(2, 11, 3.0).AddRow(4, 11, 1.0),
					sqlmock.NewRows(cols).AddRow(3, 12, 2.0))
			},
			wantOrder: []order{
				{id: 1, userId: 10, amount: 1.5},
				{id: 2, userId: 11, amount: 3.0},
				{id: 3, userId: 12, amount: 2.0},
				{id: 4, userId: 11, amount: 1.0},
				{id: 5, userId: 10, amount: 2.5},
			},
		},
		{
			name:     "单列降序",
			sortCols: []SortColumn{NewSortColumn("amount", utils.DESC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(5, 10, 2.5).AddRow(1, 10, 1.5),
					sqlmock.NewRows(cols).AddRow(2, 11, 3.0).AddRow(4, 11, 1.0))
			},
			wantOrder: []order{
				{id: 2, userId: 11, amount: 3.0},
				{id: 5, userId: 10, amount: 2.5},
				{id: 1, userId: 10, amount: 1.5},
				{id: 4, userId: 11, amount: 1.0},
			},
		},
		{
			name:     "多列排序",
			sortCols: []SortColumn{NewSortColumn("user_id", utils.ASC), NewSortColumn("id", utils.DESC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(3, 10, 1.0).AddRow(1, 11, 1.0),
					sqlmock.NewRows(cols).AddRow(4, 10, 1.0).AddRow(2, 11, 1.0))
			},
			wantOrder: []order{
				{id: 4, userId: 10, amount: 1.0},
				{id: 3, userId: 10, amount: 1.0},
				{id: 2, userId: 11, amount: 1.0},
				{id: 1, userId: 11, amount: 1.0},
			},
		},
		{
			name:     "相同的值按照结果集的顺序",
			sortCols: []SortColumn{NewSortIndex(1, utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols).AddRow(2, 10, 1.0),
					sqlmock.NewRows(cols).AddRow(1, 10, 1.0))
			},
			wantOrder: []order{
				{id: 2, userId: 10, amount: 1.0},
				{id: 1, userId: 10, amount: 1.0},
			},
		},
		{
			name:     "有空结果集",
			sortCols: []SortColumn{NewSortColumn("id", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					sqlmock.NewRows(cols),
					sqlmock.NewRows(cols).AddRow(1, 10, 1.0))
			},
			wantOrder: []order{
				{id: 1, userId: 10, amount: 1.0},
			},
		},
	}
	for _, tc := range testCases {
		ms.T().Run(tc.name, func(t *testing.T) {
			m, err := NewMerger(tc.sortCols...)
			require.NoError(t, err)
			rs, err := m.Merge(context.Background(), tc.rows())
			require.NoError(t, err)
			res := make([]order, 0, len(tc.wantOrder))
			for rs.Next() {
				var o order
				require.NoError(t, rs.Scan(&o.id, &o.userId, &o.amount))
				res = append(res, o)
			}
			require.NoError(t, rs.Err())
			assert.Equal(t, tc.wantOrder, res)
			assert.False(t, rs.Next())
			assert.Equal(t, errs.ErrMergerRowsClosed, rs.Scan())
		})
	}
}

func (ms *MergerSuite) TestRows_NextText() {
	newRows := func() *sqlmock.Rows {
		return sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("name").OfType("VARCHAR", sql.RawBytes{}))
	}
	testCases := []struct {
		name     string
		sortCols []SortColumn
		rows     func() []rows.Rows
		wantIds  []int
		wantName []string
	}{
		{
			name:     "VARCHAR 升序",
			sortCols: []SortColumn{NewSortColumn("name", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					newRows().AddRow(int64(1), "apple").AddRow(int64(3), "melon"),
					newRows().AddRow(int64(2), "banana").AddRow(int64(4), "zebra"))
			},
			wantIds:  []int{1, 2, 3, 4},
			wantName: []string{"apple", "banana", "melon", "zebra"},
		},
		{
			name:     "VARCHAR 降序",
			sortCols: []SortColumn{NewSortColumn("name", utils.DESC)},
			rows: func() []rows.Rows {
				return ms.query(
					newRows().AddRow(int64(4), "zebra").AddRow(int64(1), "apple"),
					newRows().AddRow(int64(3), "melon").AddRow(int64(2), "banana"))
			},
			wantIds:  []int{4, 3, 2, 1},
			wantName: []string{"zebra", "melon", "banana", "apple"},
		},
		{
			name:     "数字样子的文本按照字典序",
			sortCols: []SortColumn{NewSortColumn("name", utils.ASC)},
			rows: func() []rows.Rows {
				return ms.query(
					newRows().AddRow(int64(1), "10").AddRow(int64(3), "apple"),
					newRows().AddRow(int64(2), "9").AddRow(int64(4), "banana"))
			},
			wantIds:  []int{1, 2, 3, 4},
			wantName: []string{"10", "9", "apple", "banana"},
		},
	}
	for _, tc := range testCases {
		ms.T().Run(tc.name, func(t *testing.T) {
			m, err := NewMerger(tc.sortCols...)
			require.NoError(t, err)
			rs, err := m.Merge(context.Background(), tc.rows())
			require.NoError(t, err)
			ids := make([]int, 0, len(tc.wantIds))
			names := make([]string, 0, len(tc.wantName))
			for rs.Next() {
				var (
					id   int
					name string
				)
				require.NoError(t, rs.Scan(&id, &name))
				ids = append(ids, id)
				names = append(names, name)
			}
			require.NoError(t, rs.Err())
			assert.Equal(t, tc.wantIds, ids)
			assert.Equal(t, tc.wantName, names)
		})
	}
}

func (ms *MergerSuite) TestRows_NextErr() {
	cols := []string{"id"}
	rs := ms.query(
		sqlmock.NewRows(cols).AddRow(1).AddRow(3).RowError(1, nextMockErr),
		sqlmock.NewRows(cols).AddRow(2).AddRow(4))
	m, err := NewMerger(NewSortColumn("id", utils.ASC))
	require.NoError(ms.T(), err)
	res, err := m.Merge(context.Background(), rs)
	require.NoError(ms.T(), err)
	ids := make([]int, 0, 4)
	for res.Next() {
		var id int
		require.NoError(ms.T(), res.Scan(&id))
		ids = append(ids, id)
	}
	// 任何一个结果集出错都会立刻结束
	assert.Equal(ms.T(), []int{}, ids)
	assert.Equal(ms.T(), nextMockErr, res.Err())
}

func (ms *MergerSuite) TestRows_ScanAndValue() {
	cols := []string{"id", "name"}
	rs := ms.query(
		sqlmock.NewRows(cols).AddRow(1, "a"),
		sqlmock.NewRows(cols).AddRow(2, "b"))
	m, err := NewMerger(NewSortColumn("id", utils.ASC))
	require.NoError(ms.T(), err)
	res, err := m.Merge(context.Background(), rs)
	require.NoError(ms.T(), err)

	var id int
	assert.Equal(ms.T(), errs.ErrMergerScanNotNext, res.Scan(&id))
	_, err = res.Value(0)
	assert.Equal(ms.T(), errs.ErrMergerScanNotNext, err)

	require.True(ms.T(), res.Next())
	assert.Equal(ms.T(), errs.NewScanWrongDestinationArguments(2, 1), res.Scan(&id))
	val, err := res.Value(1)
	require.NoError(ms.T(), err)
	assert.Equal(ms.T(), "a", val)
	_, err = res.Value(2)
	assert.Equal(ms.T(), errs.NewInvalidColumnIndex(2, 2), err)

	columns, err := res.Columns()
	require.NoError(ms.T(), err)
	assert.Equal(ms.T(), cols, columns)
	require.NoError(ms.T(), res.Close())
	assert.False(ms.T(), res.Next())
	assert.False(ms.T(), res.NextResultSet())
}

func TestMerger(t *testing.T) {
	suite.Run(t, &MergerSuite{})
}
