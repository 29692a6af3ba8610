// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sender

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kcvdb/agent/record"
)

// DefaultCapacity is the default number of records held before the queue overflows.
const DefaultCapacity = 32

// queue is a fixed-capacity FIFO of records sharing one session. Regenerating the session always
// clears the queue, so the two share a mutex.
type queue struct {
	mutex    sync.Mutex
	capacity int
	session  uuid.UUID
	records  []record.Record
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &queue{
		capacity: capacity,
		session:  uuid.New(),
		records:  make([]record.Record, 0, capacity),
	}
}

// add appends r. If the queue is full it first regenerates the session, and returns the number of
// records that were discarded.
func (q *queue) add(r record.Record) (dropped int, overflowed bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.records) >= q.capacity {
		dropped = q.regenerateLocked()
		overflowed = true
	}
	q.records = append(q.records, r)
	return dropped, overflowed
}

// drain removes and returns every queued record in insertion order along with their session. The
// session is left unchanged.
func (q *queue) drain() ([]record.Record, uuid.UUID) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.records) == 0 {
		return nil, q.session
	}
	drained := q.records
	q.records = make([]record.Record, 0, q.capacity)
	return drained, q.session
}

// regenerate starts a new session and clears the queue. It returns the number of records
// discarded and the new session.
func (q *queue) regenerate() (int, uuid.UUID) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	dropped := q.regenerateLocked()
	return dropped, q.session
}

// Assumes q.mutex is held.
func (q *queue) regenerateLocked() int {
	dropped := len(q.records)
	q.session = uuid.New()
	q.records = q.records[:0]
	return dropped
}

func (q *queue) currentSession() uuid.UUID {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.session
}

func (q *queue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.records)
}
