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

package keygen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecodeclub/eshard/sharding"
	"github.com/golang/glog"
)

const (
	sequenceBits  = 12
	workerIDBits  = 10
	sequenceMask  = 1<<sequenceBits - 1
	maxWorkerID   = 1<<workerIDBits - 1
	workerIDShift = sequenceBits
	timeShift     = sequenceBits + workerIDBits
)

// DefaultEpoch 2016-11-01 00:00:00 UTC
var DefaultEpoch = time.Date(2016, time.November, 1, 0, 0, 0, 0, time.UTC)

var errClockBackwards = errors.New("keygen: 时钟回拨超过容忍范围")

var _ sharding.KeyGenerator = &Snowflake{}

// Snowflake 雪花算法
// 41 位毫秒时间戳，10 位 worker id，12 位序列号
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	workerID int64
	// maxBackwards 允许的时钟回拨，超过就报错
	maxBackwards time.Duration
	lastMillis   int64
	sequence     int64
	now          func() time.Time
}

type SnowflakeOption func(s *Snowflake)

func WithEpoch(epoch time.Time) SnowflakeOption {
	return func(s *Snowflake) {
		s.epoch = epoch.UnixMilli()
	}
}

func WithMaxBackwards(d time.Duration) SnowflakeOption {
	return func(s *Snowflake) {
		s.maxBackwards = d
	}
}

func withClock(now func() time.Time) SnowflakeOption {
	return func(s *Snowflake) {
		s.now = now
	}
}

func NewSnowflake(workerID int64, opts ...SnowflakeOption) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("keygen: worker id %d 超出范围 [0, %d]", workerID, maxWorkerID)
	}
	s := &Snowflake{
		epoch:        DefaultEpoch.UnixMilli(),
		workerID:     workerID,
		maxBackwards: 10 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Snowflake) NextKey() (any, error) {
	id, err := s.NextID()
	if err != nil {
		return nil, err
	}
	return id, nil
}

// NextID 生成下一个 ID，同一毫秒内序列号用完会等到下一毫秒
func (s *Snowflake) NextID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.now().UnixMilli()
	if cur < s.lastMillis {
		back := time.Duration(s.lastMillis-cur) * time.Millisecond
		if back > s.maxBackwards {
			return 0, fmt.Errorf("%w: %v", errClockBackwards, back)
		}
		glog.Warningf("keygen: 时钟回拨 %v，等待追上", back)
		for cur < s.lastMillis {
			time.Sleep(time.Millisecond)
			cur = s.now().UnixMilli()
		}
	}
	if cur == s.lastMillis {
		s.sequence = (s.sequence + 1) & sequenceMask
		if s.sequence == 0 {
			for cur <= s.lastMillis {
				cur = s.now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMillis = cur
	return (cur-s.epoch)<<timeShift | s.workerID<<workerIDShift | s.sequence, nil
}
