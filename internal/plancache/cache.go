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

package plancache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/ecodeclub/eshard/internal/metrics"
	"github.com/ecodeclub/eshard/internal/rewrite"
	"github.com/ecodeclub/eshard/internal/route"
	"github.com/ecodeclub/eshard/internal/stmtctx"
	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

const defaultMaxEntries = 1024

// Plan 路由和 token 生成的结果，只包含可以重新计算的数据
type Plan struct {
	Context *stmtctx.Context
	Route   *route.Context
	Tokens  rewrite.Tokens
}

type Options struct {
	// MaxEntries 最多缓存多少个执行计划
	MaxEntries int
	// InitialCapacity 初始容量，写满之后翻倍直到 MaxEntries
	// 小于等于 0 或者超过 MaxEntries 的时候直接使用 MaxEntries
	InitialCapacity int
	// MaxAge 大于 0 的时候，超过该时间的执行计划会被重新计算
	MaxAge time.Duration
	// SoftValues 只持有弱引用，GC 之后重新计算
	SoftValues bool
}

type entry struct {
	strong  *Plan
	soft    weak.Pointer[Plan]
	created time.Time
}

func (e *entry) plan() *Plan {
	if e.strong != nil {
		return e.strong
	}
	return e.soft.Value()
}

// Cache 执行计划缓存
// 同一个 key 同时只会有一个计算，失败的结果不会被缓存
type Cache struct {
	entries *lru.Cache
	// mu 保护 capacity，扩容和写入必须一起完成
	mu       sync.Mutex
	capacity int
	group   singleflight.Group
	opts    Options
	version atomic.Uint64
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(opts Options, m *metrics.Metrics) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if m == nil {
		m = metrics.New(nil)
	}
	capacity := opts.InitialCapacity
	if capacity <= 0 || capacity > opts.MaxEntries {
		capacity = opts.MaxEntries
	}
	c := &Cache{opts: opts, metrics: m, now: time.Now, capacity: capacity}
	entries, err := lru.NewWithEvict(capacity, func(_ interface{}, _ interface{}) {
		c.metrics.PlanCacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Version 当前的 schema 版本
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

// Get 命中直接返回，否则调用 compute 计算
func (c *Cache) Get(key Key, compute func() (*Plan, error)) (*Plan, error) {
	if p, ok := c.lookup(key); ok {
		c.metrics.PlanCacheHits.Inc()
		return p, nil
	}
	c.metrics.PlanCacheMisses.Inc()
	val, err, _ := c.group.Do(key.flightKey(), func() (interface{}, error) {
		// 等待期间别人可能已经算好了
		if p, ok := c.lookup(key); ok {
			return p, nil
		}
		p, err := compute()
		if err != nil {
			return nil, err
		}
		e := &entry{created: c.now()}
		if c.opts.SoftValues {
			e.soft = weak.Make(p)
		} else {
			e.strong = p
		}
		c.add(key, e)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*Plan), nil
}

func (c *Cache) add(key Key, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity < c.opts.MaxEntries && !c.entries.Contains(key) && c.entries.Len() >= c.capacity {
		c.capacity = min(c.capacity*2, c.opts.MaxEntries)
		c.entries.Resize(c.capacity)
	}
	c.entries.Add(key, e)
}

func (c *Cache) lookup(key Key) (*Plan, bool) {
	val, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	e := val.(*entry)
	if c.opts.MaxAge > 0 && c.now().Sub(e.created) > c.opts.MaxAge {
		c.entries.Remove(key)
		return nil, false
	}
	p := e.plan()
	if p == nil {
		c.entries.Remove(key)
		return nil, false
	}
	return p, true
}

// Purge schema 变更的时候清空缓存，并且升级版本
// 正在计算中的旧版本执行计划会以旧的版本号写入，之后不会再被命中
func (c *Cache) Purge() {
	v := c.version.Add(1)
	c.entries.Purge()
	glog.Infof("eshard: 执行计划缓存已清空, schema 版本 %d", v)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Capacity 当前的容量
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%x:%x", k.SchemaVersion, k.Fingerprint, k.Shape)
}

// flightKey 同一时间只计算一次的粒度，必须和 Key 的相等性一致
func (k Key) flightKey() string {
	return strings.Join([]string{k.String(), k.sql, k.shape}, "\x00")
}
