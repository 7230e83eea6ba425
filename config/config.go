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

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ecodeclub/eshard/internal/dialect"
	"github.com/spf13/viper"
)

const envPrefix = "ESHARD"

// DataSource 一个物理库
type DataSource struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	// Replicas 只读副本的 DSN，和主库使用同一个 driver
	Replicas []string `mapstructure:"replicas"`
}

type PlanCache struct {
	Disabled   bool          `mapstructure:"disabled"`
	MaxEntries int           `mapstructure:"max_entries"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	SoftValues bool          `mapstructure:"soft_values"`

	// InitialCapacity 初始容量，0 表示直接使用 max_entries
	InitialCapacity int `mapstructure:"initial_capacity"`
}

type Executor struct {
	// MaxConcurrency 小于等于 0 不限制
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// Config Engine 的配置，分片规则本身不在这里
type Config struct {
	DataSources []DataSource `mapstructure:"data_sources"`
	PlanCache   PlanCache    `mapstructure:"plan_cache"`
	Executor    Executor     `mapstructure:"executor"`
}

// Load 从文件加载配置，环境变量 ESHARD_PLAN_CACHE_MAX_ENTRIES 这种形式可以覆盖文件里面的值
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("eshard: 读取配置文件 %s 失败: %w", path, err)
	}
	return unmarshal(v)
}

// LoadReader configType 是 viper 支持的格式，例如 yaml、json、toml
func LoadReader(configType string, r io.Reader) (Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("eshard: 解析配置失败: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("plan_cache.disabled", false)
	v.SetDefault("plan_cache.max_entries", 1024)
	v.SetDefault("plan_cache.initial_capacity", 0)
	v.SetDefault("plan_cache.max_age", time.Duration(0))
	v.SetDefault("plan_cache.soft_values", false)
	v.SetDefault("executor.max_concurrency", 0)
	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("eshard: 解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 数据源名字不能重复，driver 必须受支持
func (c Config) Validate() error {
	names := make(map[string]struct{}, len(c.DataSources))
	for _, ds := range c.DataSources {
		if ds.Name == "" {
			return fmt.Errorf("eshard: 数据源名字不能为空")
		}
		if _, ok := names[ds.Name]; ok {
			return fmt.Errorf("eshard: 数据源 %s 重复", ds.Name)
		}
		names[ds.Name] = struct{}{}
		d, err := dialect.Of(ds.Driver)
		if err != nil {
			return err
		}
		if err = d.CheckDSN(ds.DSN); err != nil {
			return err
		}
		for _, r := range ds.Replicas {
			if r == "" {
				return fmt.Errorf("eshard: 数据源 %s 的副本 DSN 不能为空", ds.Name)
			}
			if err = d.CheckDSN(r); err != nil {
				return err
			}
		}
	}
	if c.PlanCache.MaxEntries < 0 {
		return fmt.Errorf("eshard: plan_cache.max_entries 不能小于 0")
	}
	if c.PlanCache.InitialCapacity < 0 {
		return fmt.Errorf("eshard: plan_cache.initial_capacity 不能小于 0")
	}
	if c.PlanCache.MaxEntries > 0 && c.PlanCache.InitialCapacity > c.PlanCache.MaxEntries {
		return fmt.Errorf("eshard: plan_cache.initial_capacity %d 超过 max_entries %d",
			c.PlanCache.InitialCapacity, c.PlanCache.MaxEntries)
	}
	return nil
}
