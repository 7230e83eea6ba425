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

// Op 比较运算符
type Op struct {
	Symbol string
	Text   string
}

var (
	OpLT      = Op{Symbol: "<", Text: "<"}
	OpLTEQ    = Op{Symbol: "<=", Text: "<="}
	OpGT      = Op{Symbol: ">", Text: ">"}
	OpGTEQ    = Op{Symbol: ">=", Text: ">="}
	OpEQ      = Op{Symbol: "=", Text: "="}
	OpNEQ     = Op{Symbol: "!=", Text: "!="}
	OpLike    = Op{Symbol: "LIKE", Text: " LIKE "}
	OpNotLike = Op{Symbol: "NOT LIKE", Text: " NOT LIKE "}
)
