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

package test

import (
	"github.com/ecodeclub/eshard/sharding"
	"github.com/ecodeclub/eshard/sharding/algorithm"
)

// OrderRule 一个数据源，t_order 和 t_order_item 按照 user_id % 4 分成四张表并且互相绑定，
// t_config 是广播表，t_user 是单表
func OrderRule() *sharding.Rule {
	byUser := sharding.StandardStrategy{
		Column:  "user_id",
		Precise: algorithm.Mod{ShardingCount: 4},
		Range:   algorithm.Mod{ShardingCount: 4},
	}
	return mustRule(sharding.RuleConfig{
		Tables: []sharding.TableRuleConfig{
			{
				LogicTable:      "t_order",
				ActualDataNodes: "ds_0.t_order_${0..3}",
				TableStrategy:   byUser,
			},
			{
				LogicTable:      "t_order_item",
				ActualDataNodes: "ds_0.t_order_item_${0..3}",
				TableStrategy:   byUser,
			},
		},
		BindingGroups:     [][]string{{"t_order", "t_order_item"}},
		BroadcastTables:   []string{"t_config"},
		SingleTables:      map[string]string{"t_user": "ds_0"},
		DataSources:       []string{"ds_0"},
		DefaultDataSource: "ds_0",
	})
}

// ShardingRule 两个数据源，user_id % 2 选库，order_id % 2 选表
// t_order 和 t_order_item 互相绑定，t_config 是广播表
func ShardingRule() *sharding.Rule {
	dbStrategy := sharding.StandardStrategy{
		Column:  "user_id",
		Precise: algorithm.Mod{ShardingCount: 2},
		Range:   algorithm.Mod{ShardingCount: 2},
	}
	tableStrategy := sharding.StandardStrategy{
		Column:  "order_id",
		Precise: algorithm.Mod{ShardingCount: 2},
		Range:   algorithm.Mod{ShardingCount: 2},
	}
	return mustRule(sharding.RuleConfig{
		Tables: []sharding.TableRuleConfig{
			{
				LogicTable:       "t_order",
				ActualDataNodes:  "ds_${0..1}.t_order_${0..1}",
				DatabaseStrategy: dbStrategy,
				TableStrategy:    tableStrategy,
			},
			{
				LogicTable:       "t_order_item",
				ActualDataNodes:  "ds_${0..1}.t_order_item_${0..1}",
				DatabaseStrategy: dbStrategy,
				TableStrategy:    tableStrategy,
			},
		},
		BindingGroups:   [][]string{{"t_order", "t_order_item"}},
		BroadcastTables: []string{"t_config"},
		DataSources:     []string{"ds_0", "ds_1"},
	})
}

func mustRule(cfg sharding.RuleConfig) *sharding.Rule {
	rule, err := sharding.NewRule(cfg)
	if err != nil {
		panic(err)
	}
	return rule
}
