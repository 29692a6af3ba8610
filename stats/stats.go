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

import "time"

// Batch describes one finished delivery attempt.
type Batch struct {
	Endpoint string
	Records  int
	Attempts int
}

// Recorder receives delivery events from a sender.Engine.
type Recorder interface {
	// BatchSucceeded is called when a batch was accepted by the endpoint.
	BatchSucceeded(b Batch)

	// BatchFailed is called when a batch was discarded after its exchange failed.
	BatchFailed(b Batch)

	// RecordsDropped is called when queue overflow discards n pending records.
	RecordsDropped(n int)

	// SessionReset is called whenever the sending session is regenerated.
	SessionReset()
}

// Provider provides a Snapshot of delivery statistics.
type Provider interface {
	Snapshot() Snapshot
}

// Snapshot contains delivery statistics accumulated since the agent started.
type Snapshot struct {
	// LastSuccess is the time of the most recent successful batch, or zero.
	LastSuccess time.Time `json:"lastSuccess"`

	// CurrentFailureCount is the number of batches that failed since the last success.
	CurrentFailureCount int `json:"currentFailureCount"`

	// TotalFailureCount is the number of batches that failed since the agent started.
	TotalFailureCount int `json:"totalFailureCount"`

	BatchesSucceeded int `json:"batchesSucceeded"`
	DeliveredRecords int `json:"deliveredRecords"`
	DiscardedRecords int `json:"discardedRecords"`
	DroppedRecords   int `json:"droppedRecords"`
	SessionResets    int `json:"sessionResets"`
}

type noopRecorder struct{}

// NewNoopRecorder returns a Recorder that does nothing.
func NewNoopRecorder() Recorder {
	return &noopRecorder{}
}

func (*noopRecorder) BatchSucceeded(Batch) {}
func (*noopRecorder) BatchFailed(Batch)    {}
func (*noopRecorder) RecordsDropped(int)   {}
func (*noopRecorder) SessionReset()        {}
