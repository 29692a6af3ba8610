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

package stats

import (
	"sync"

	"github.com/golang/glog"

	"github.com/kcvdb/agent/clock"
)

// Basic is a stats.Recorder and stats.Provider that records and provides stats.Snapshot values.
// Storage is in-memory and all stats are reset when the agent is restarted.
type Basic struct {
	clock   clock.Clock
	mutex   sync.RWMutex
	current Snapshot
}

func (s *Basic) BatchSucceeded(b Batch) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	// Reset the "current" failure count: the number of failures since the last success
	s.current.CurrentFailureCount = 0
	s.current.LastSuccess = s.clock.Now()
	s.current.BatchesSucceeded++
	s.current.DeliveredRecords += b.Records
}

func (s *Basic) BatchFailed(b Batch) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.current.CurrentFailureCount++
	s.current.TotalFailureCount++
	s.current.DiscardedRecords += b.Records
	if s.current.CurrentFailureCount > 1 {
		glog.V(1).Infof("stats.Basic: %v consecutive failed batches (endpoint %v)", s.current.CurrentFailureCount, b.Endpoint)
	}
}

func (s *Basic) RecordsDropped(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.current.DroppedRecords += n
}

func (s *Basic) SessionReset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.current.SessionResets++
}

func (s *Basic) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

func NewBasic() *Basic {
	return NewBasicWithClock(clock.NewClock())
}

// NewBasicWithClock returns a Basic that stamps successes using c.
func NewBasicWithClock(c clock.Clock) *Basic {
	return &Basic{clock: c}
}
