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

package testlib

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/kcvdb/agent/stats"
)

// Type waitForCalls is a base type that provides a doAndWait function.
type waitForCalls struct {
	calls    int32
	waitChan chan bool
}

// DoAndWait executes the given function and then waits until the total number of calls reaches the
// given value.
func (wfc *waitForCalls) DoAndWait(t *testing.T, calls int32, f func()) {
	t.Helper()
	f()
	for atomic.LoadInt32(&wfc.calls) < calls {
		select {
		case <-wfc.waitChan:
		case <-time.After(5 * time.Second):
			t.Fatal("DoAndWait: nothing happened after 5 seconds")
		}
	}
}

func (wfc *waitForCalls) called() {
	atomic.AddInt32(&wfc.calls, 1)
	select {
	case wfc.waitChan <- true:
	default:
	}
}

func (wfc *waitForCalls) Calls() int32 {
	return atomic.LoadInt32(&wfc.calls)
}

func (wfc *waitForCalls) wfcInit() {
	wfc.waitChan = make(chan bool, 100)
}

// Upload is one batch received by a MockIntake.
type Upload struct {
	Metadata map[string]string
	Records  []map[string]interface{}
}

// Type MockIntake is an httptest server that accepts kcvdb multipart uploads, decodes them, and
// answers with a configurable status.
type MockIntake struct {
	waitForCalls
	*httptest.Server

	mu      sync.Mutex
	status  int
	uploads []Upload
	errs    []error
}

// NewMockIntake starts a MockIntake that answers 200. Callers must Close it.
func NewMockIntake() *MockIntake {
	mi := &MockIntake{status: http.StatusOK}
	mi.wfcInit()
	mi.Server = httptest.NewServer(http.HandlerFunc(mi.handle))
	return mi
}

func (mi *MockIntake) SetStatus(status int) {
	mi.mu.Lock()
	mi.status = status
	mi.mu.Unlock()
}

// Uploads returns every upload received so far. It fails the test if any upload was malformed.
func (mi *MockIntake) Uploads(t *testing.T) []Upload {
	t.Helper()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if len(mi.errs) > 0 {
		t.Fatalf("MockIntake: malformed upload: %+v", mi.errs[0])
	}
	return append([]Upload(nil), mi.uploads...)
}

func (mi *MockIntake) handle(w http.ResponseWriter, r *http.Request) {
	u, err := decodeUpload(r)
	mi.mu.Lock()
	if err != nil {
		mi.errs = append(mi.errs, err)
	}
	mi.uploads = append(mi.uploads, u)
	status := mi.status
	mi.mu.Unlock()
	mi.called()
	w.WriteHeader(status)
}

func decodeUpload(r *http.Request) (Upload, error) {
	var u Upload
	mr, err := r.MultipartReader()
	if err != nil {
		return u, err
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return u, nil
		}
		if err != nil {
			return u, err
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return u, err
		}
		switch p.FormName() {
		case "metadata":
			if err := json.Unmarshal(data, &u.Metadata); err != nil {
				return u, err
			}
		case "body":
			gr, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return u, err
			}
			raw, err := io.ReadAll(gr)
			if err != nil {
				return u, err
			}
			if err := json.Unmarshal(raw, &u.Records); err != nil {
				return u, err
			}
		default:
			return u, errors.New("unexpected part " + p.FormName())
		}
	}
}

// Type MockStatsRecorder is a mock stats.Recorder.
type MockStatsRecorder struct {
	waitForCalls
	mu        sync.RWMutex
	succeeded []stats.Batch
	failed    []stats.Batch
	dropped   int
	resets    int
}

func (sr *MockStatsRecorder) BatchSucceeded(b stats.Batch) {
	sr.mu.Lock()
	sr.succeeded = append(sr.succeeded, b)
	sr.mu.Unlock()
	sr.called()
}

func (sr *MockStatsRecorder) BatchFailed(b stats.Batch) {
	sr.mu.Lock()
	sr.failed = append(sr.failed, b)
	sr.mu.Unlock()
	sr.called()
}

func (sr *MockStatsRecorder) RecordsDropped(n int) {
	sr.mu.Lock()
	sr.dropped += n
	sr.mu.Unlock()
}

func (sr *MockStatsRecorder) SessionReset() {
	sr.mu.Lock()
	sr.resets++
	sr.mu.Unlock()
}

func (sr *MockStatsRecorder) Succeeded() []stats.Batch {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.succeeded
}

func (sr *MockStatsRecorder) Failed() []stats.Batch {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.failed
}

func (sr *MockStatsRecorder) Dropped() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.dropped
}

func (sr *MockStatsRecorder) Resets() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.resets
}

func NewMockStatsRecorder() *MockStatsRecorder {
	sr := &MockStatsRecorder{}
	sr.wfcInit()
	return sr
}
