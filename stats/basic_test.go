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

package stats_test

import (
	"testing"
	"time"

	"github.com/kcvdb/agent/stats"
	"github.com/kcvdb/agent/testlib"
)

func TestSimple(t *testing.T) {
	mc := testlib.NewMockClock()
	s := stats.NewBasicWithClock(mc)

	mc.SetNow(time.Unix(1000, 0))
	s.BatchSucceeded(stats.Batch{Endpoint: "kcvdb", Records: 3, Attempts: 1})

	snap := s.Snapshot()
	if want, got := 0, snap.CurrentFailureCount; want != got {
		t.Fatalf("snap.CurrentFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := 0, snap.TotalFailureCount; want != got {
		t.Fatalf("snap.TotalFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := time.Unix(1000, 0), snap.LastSuccess; want != got {
		t.Fatalf("snap.LastSuccess: want=%v, got=%v", want, got)
	}
	if want, got := 3, snap.DeliveredRecords; want != got {
		t.Fatalf("snap.DeliveredRecords: want=%v, got=%v", want, got)
	}

	mc.SetNow(time.Unix(1100, 0))
	s.BatchFailed(stats.Batch{Endpoint: "kcvdb", Records: 2, Attempts: 6})
	s.SessionReset()
	s.BatchFailed(stats.Batch{Endpoint: "kcvdb", Records: 1, Attempts: 6})
	s.SessionReset()

	// Check that the failure counts have increased and the last success didn't move.
	snap = s.Snapshot()
	if want, got := 2, snap.CurrentFailureCount; want != got {
		t.Fatalf("snap.CurrentFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := 2, snap.TotalFailureCount; want != got {
		t.Fatalf("snap.TotalFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := 3, snap.DiscardedRecords; want != got {
		t.Fatalf("snap.DiscardedRecords: want=%v, got=%v", want, got)
	}
	if want, got := 2, snap.SessionResets; want != got {
		t.Fatalf("snap.SessionResets: want=%v, got=%v", want, got)
	}
	if want, got := time.Unix(1000, 0), snap.LastSuccess; want != got {
		t.Fatalf("snap.LastSuccess: want=%v, got=%v", want, got)
	}

	mc.SetNow(time.Unix(1200, 0))
	s.BatchSucceeded(stats.Batch{Endpoint: "kcvdb", Records: 1, Attempts: 2})
	s.RecordsDropped(32)

	// LastSuccess should move forward, and CurrentFailureCount should be reset to 0.
	snap = s.Snapshot()
	if want, got := 0, snap.CurrentFailureCount; want != got {
		t.Fatalf("snap.CurrentFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := 2, snap.TotalFailureCount; want != got {
		t.Fatalf("snap.TotalFailureCount: want=%v, got=%v", want, got)
	}
	if want, got := time.Unix(1200, 0), snap.LastSuccess; want != got {
		t.Fatalf("snap.LastSuccess: want=%v, got=%v", want, got)
	}
	if want, got := 2, snap.BatchesSucceeded; want != got {
		t.Fatalf("snap.BatchesSucceeded: want=%v, got=%v", want, got)
	}
	if want, got := 32, snap.DroppedRecords; want != got {
		t.Fatalf("snap.DroppedRecords: want=%v, got=%v", want, got)
	}
}

func TestNoopRecorder(t *testing.T) {
	r := stats.NewNoopRecorder()
	r.BatchSucceeded(stats.Batch{})
	r.BatchFailed(stats.Batch{})
	r.RecordsDropped(1)
	r.SessionReset()
}
