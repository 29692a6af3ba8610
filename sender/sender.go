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

// Package sender implements the delivery engine: a bounded queue of captured records tagged with a
// session, and a Deliver operation that drains the queue and uploads it as one batch with linear
// backoff retries.
package sender

import (
	"context"

	"github.com/google/uuid"

	"github.com/kcvdb/agent/record"
)

// Sender accepts records and delivers them in batches. *Engine is the only implementation; the
// interface exists so callers such as the intake daemon can be tested against a fake.
type Sender interface {
	// Add appends a record to the pending queue. It never fails and never blocks on I/O. If the
	// queue is full, the session is regenerated (discarding everything pending) before the record
	// is added.
	Add(r record.Record)

	// Deliver drains the queue and attempts to upload the drained records as one batch. It blocks
	// for the duration of the exchange, including backoff pauses. The returned error is non-nil
	// only if the batch could not be encoded; delivery failures are reported in the Outcome.
	Deliver(ctx context.Context) (Outcome, error)

	// Session returns the current session identifier.
	Session() uuid.UUID

	// Pending returns the number of queued records.
	Pending() int
}

// Result classifies a Deliver call.
type Result int

const (
	// Idle means the queue was empty and nothing was sent.
	Idle Result = iota
	// Succeeded means the endpoint accepted the batch.
	Succeeded
	// Failed means the batch was discarded after the exchange failed.
	Failed
)

func (r Result) String() string {
	switch r {
	case Idle:
		return "idle"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome describes a finished Deliver call.
type Outcome struct {
	Result Result
	// Session is the session the batch was sent under.
	Session uuid.UUID
	// Records is the number of records in the batch.
	Records int
	// Attempts is the number of HTTP attempts made.
	Attempts int
	// StatusCode is the status of the last response, or 0 if the server never answered.
	StatusCode int
	// Err is the last failure for a Failed outcome.
	Err error
}
