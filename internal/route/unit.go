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

package route

import "strings"

type DataSourceMapping struct {
	Logic  string
	Actual string
}

type TableMapping struct {
	Logic  string
	Actual string
}

// Unit 一个路由单元，对应一条需要执行的物理 SQL
type Unit struct {
	DataSource DataSourceMapping
	Tables     []TableMapping
}

// Key 由映射关系组成，用于去重
func (u Unit) Key() string {
	var sb strings.Builder
	sb.WriteString(u.DataSource.Actual)
	for _, t := range u.Tables {
		sb.WriteByte('|')
		sb.WriteString(strings.ToLower(t.Logic))
		sb.WriteByte(':')
		sb.WriteString(t.Actual)
	}
	return sb.String()
}

// ActualTable 查找逻辑表对应的物理表
func (u Unit) ActualTable(logic string) (string, bool) {
	for _, t := range u.Tables {
		if strings.EqualFold(t.Logic, logic) {
			return t.Actual, true
		}
	}
	return "", false
}

// Context 路由结果，构造之后不可变
type Context struct {
	Units []Unit
	// InsertRows 只有 INSERT 语句有，和 Units 对齐，表示每个路由单元需要插入的原始行
	InsertRows [][]int
}

// IsSingleUnit 只路由到一个单元的时候不需要改写分页，也不需要归并
func (c *Context) IsSingleUnit() bool {
	return len(c.Units) == 1
}

// DataSources 按照路由顺序返回涉及的数据源
func (c *Context) DataSources() []string {
	res := make([]string, 0, len(c.Units))
	seen := make(map[string]struct{}, len(c.Units))
	for _, u := range c.Units {
		if _, ok := seen[u.DataSource.Actual]; ok {
			continue
		}
		seen[u.DataSource.Actual] = struct{}{}
		res = append(res, u.DataSource.Actual)
	}
	return res
}

func (c *Context) add(u Unit, rows ...int) {
	key := u.Key()
	for i, exist := range c.Units {
		if exist.Key() == key {
			if c.InsertRows != nil {
				c.InsertRows[i] = append(c.InsertRows[i], rows...)
			}
			return
		}
	}
	c.Units = append(c.Units, u)
	if rows != nil {
		c.InsertRows = append(c.InsertRows, rows)
	}
}
