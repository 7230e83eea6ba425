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

package statement

// Expr 是 WHERE 里面的表达式，也是值表达式
// 外部解析器负责构造，这里只定义结构
type Expr interface {
	expr()
}

// And 逻辑与
type And struct {
	Left  Expr
	Right Expr
}

// Or 逻辑或
type Or struct {
	Left  Expr
	Right Expr
}

// Not 逻辑非
type Not struct {
	Expr Expr
}

// Comparison 形如 col op value 的比较表达式
type Comparison struct {
	Column ColumnRef
	Op     Op
	Value  Expr
}

// In 形如 col IN (v1, v2...)
type In struct {
	Column ColumnRef
	Values []Expr
	Not    bool
}

// Between 形如 col BETWEEN low AND high
type Between struct {
	Column ColumnRef
	Low    Expr
	High   Expr
	Not    bool
}

// Opaque 表示无法理解的表达式，例如子查询、函数谓词
// 条件提取会直接忽略它
type Opaque struct {
	Text string
}

// Literal 字面量
type Literal struct {
	Value any
}

// Param 第 Index 个占位符，从 0 开始
type Param struct {
	Index int
}

// Now 表示 now() 之类的时间函数，值在执行时才确定
type Now struct{}

// Null 字面量 NULL
type Null struct{}

// Func 其它函数调用
type Func struct {
	Name string
}

func (And) expr()        {}
func (Or) expr()         {}
func (Not) expr()        {}
func (Comparison) expr() {}
func (In) expr()         {}
func (Between) expr()    {}
func (Opaque) expr()     {}
func (Literal) expr()    {}
func (Param) expr()      {}
func (Now) expr()        {}
func (Null) expr()       {}
func (Func) expr()       {}

// ResolveValue 把值表达式解析成具体的值
// 返回 false 说明这个值没办法在路由阶段确定
func ResolveValue(e Expr, params []any) (any, bool) {
	switch v := e.(type) {
	case Literal:
		if v.Value == nil {
			return nil, false
		}
		return v.Value, true
	case Param:
		if v.Index < 0 || v.Index >= len(params) {
			return nil, false
		}
		if params[v.Index] == nil {
			return nil, false
		}
		return params[v.Index], true
	default:
		return nil, false
	}
}
