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

package roundrobin

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/ecodeclub/eshard/internal/datasource/masterslave/slaves"
	"github.com/ecodeclub/eshard/internal/errs"
	"go.uber.org/multierr"
)

var _ slaves.Slaves = &Slaves{}

// Slaves 轮询
type Slaves struct {
	slaves []slaves.Slave
	cnt    atomic.Uint32
}

func (r *Slaves) Next(ctx context.Context) (slaves.Slave, error) {
	if ctx.Err() != nil {
		return slaves.Slave{}, ctx.Err()
	}
	if r == nil || len(r.slaves) == 0 {
		return slaves.Slave{}, errs.ErrSlaveNotFound
	}
	cnt := r.cnt.Add(1) - 1
	return r.slaves[int(cnt%uint32(len(r.slaves)))], nil
}

func (r *Slaves) Close() error {
	var err error
	for _, inst := range r.slaves {
		if er := inst.Close(); er != nil {
			err = multierr.Combine(
				err, fmt.Errorf("slave DB name [%s] error: %w", inst.SlaveName, er))
		}
	}
	return err
}

// NewSlaves 副本的名字是它的下标
func NewSlaves(dbs ...*sql.DB) *Slaves {
	r := &Slaves{}
	r.slaves = make([]slaves.Slave, 0, len(dbs))
	for idx, db := range dbs {
		r.slaves = append(r.slaves, slaves.Slave{
			SlaveName: strconv.Itoa(idx),
			DB:        db,
		})
	}
	return r
}
