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
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/kcvdb/agent/clock"
	"github.com/kcvdb/agent/encode"
	"github.com/kcvdb/agent/endpoint"
	"github.com/kcvdb/agent/record"
	"github.com/kcvdb/agent/stats"
	"github.com/kcvdb/agent/transport"
)

// DefaultAgent is the AgentId sent with every batch unless overridden.
const DefaultAgent = "logbook-kcvdb-client v1"

// Options configure an Engine.
type Options struct {
	// Agent is the free-form client label sent as AgentId.
	Agent string
	// Capacity is the queue size. Zero selects DefaultCapacity.
	Capacity int
	// Backoff governs retries within one exchange.
	Backoff LinearBackoff
	// MinInterval is the minimum time between the end of one exchange and the start of the next.
	MinInterval time.Duration
}

// DefaultOptions returns the kcvdb client defaults.
func DefaultOptions() Options {
	b := DefaultBackoff()
	return Options{
		Agent:       DefaultAgent,
		Capacity:    DefaultCapacity,
		Backoff:     b,
		MinInterval: b.BaseWait,
	}
}

// Hook observes the outcome of a Deliver call. Hooks run synchronously on the delivering goroutine
// and must not call Deliver.
type Hook func(Outcome)

var _ Sender = (*Engine)(nil)

// Engine is the Sender implementation. The zero value is not usable; see NewEngine.
type Engine struct {
	endpoint    endpoint.Endpoint
	client      *transport.Client
	recorder    stats.Recorder
	clock       clock.Clock
	agent       string
	backoff     LinearBackoff
	minInterval time.Duration
	queue       *queue

	// deliverMutex serializes Deliver and guards the fields below it.
	deliverMutex sync.Mutex
	failureCount int
	lastAttempt  time.Time

	hookMutex sync.RWMutex
	onSuccess Hook
	onFailure Hook
}

// NewEngine creates an Engine that delivers to ep through client.
func NewEngine(ep endpoint.Endpoint, client *transport.Client, recorder stats.Recorder, opts Options) *Engine {
	return newEngine(ep, client, recorder, opts, clock.NewClock())
}

func newEngine(ep endpoint.Endpoint, client *transport.Client, recorder stats.Recorder, opts Options, clock clock.Clock) *Engine {
	if recorder == nil {
		recorder = stats.NewNoopRecorder()
	}
	if opts.Agent == "" {
		opts.Agent = DefaultAgent
	}
	return &Engine{
		endpoint:    ep,
		client:      client,
		recorder:    recorder,
		clock:       clock,
		agent:       opts.Agent,
		backoff:     opts.Backoff,
		minInterval: opts.MinInterval,
		queue:       newQueue(opts.Capacity),
	}
}

func (e *Engine) Add(r record.Record) {
	dropped, overflowed := e.queue.add(r)
	if !overflowed {
		return
	}
	glog.Warningf("sender: %v: queue full, discarded %d records and started session %v", e.endpoint.Name(), dropped, e.queue.currentSession())
	e.recorder.RecordsDropped(dropped)
	e.recorder.SessionReset()
}

func (e *Engine) Session() uuid.UUID {
	return e.queue.currentSession()
}

func (e *Engine) Pending() int {
	return e.queue.len()
}

// RegenerateSession starts a new session, discarding any pending records.
func (e *Engine) RegenerateSession() {
	dropped, session := e.queue.regenerate()
	glog.V(1).Infof("sender: %v: new session %v (%d pending records discarded)", e.endpoint.Name(), session, dropped)
	if dropped > 0 {
		e.recorder.RecordsDropped(dropped)
	}
	e.recorder.SessionReset()
}

// SetSuccessHook installs h to run after each successful batch. A nil h restores the default,
// which does nothing.
func (e *Engine) SetSuccessHook(h Hook) {
	e.hookMutex.Lock()
	defer e.hookMutex.Unlock()
	e.onSuccess = h
}

// SetFailureHook installs h to run after each failed batch, replacing the default, which
// regenerates the session. A nil h restores the default.
func (e *Engine) SetFailureHook(h Hook) {
	e.hookMutex.Lock()
	defer e.hookMutex.Unlock()
	e.onFailure = h
}

// Deliver implements Sender. Concurrent calls are serialized.
func (e *Engine) Deliver(ctx context.Context) (Outcome, error) {
	e.deliverMutex.Lock()
	defer e.deliverMutex.Unlock()

	records, session := e.queue.drain()
	if len(records) == 0 {
		return Outcome{Result: Idle, Session: session}, nil
	}
	e.failureCount = 0
	out := Outcome{Session: session, Records: len(records)}

	entity, err := e.build(session, records)
	if err != nil {
		glog.Errorf("sender: %v: discarding %d records: %+v", e.endpoint.Name(), len(records), err)
		return Outcome{}, err
	}

	if !e.lastAttempt.IsZero() {
		wait := e.lastAttempt.Add(e.minInterval).Sub(e.clock.Now())
		if err := clock.Sleep(ctx, e.clock, wait); err != nil {
			out.Result = Failed
			out.Err = err
			e.finish(out)
			return out, nil
		}
	}

	req := &transport.Request{
		Method:      http.MethodPost,
		URL:         e.endpoint.URL(),
		ContentType: entity.ContentType,
		Body:        entity.Body,
	}
	resp, err := e.client.Do(ctx, req, e.retry)
	e.lastAttempt = e.clock.Now()
	if resp != nil {
		out.StatusCode = resp.StatusCode
	}
	out.Attempts = e.failureCount
	if err == nil {
		out.Result = Succeeded
		out.Attempts++
	} else {
		out.Result = Failed
		out.Err = err
	}
	e.finish(out)
	return out, nil
}

// retry is the transport.RetryFunc for the current exchange.
func (e *Engine) retry(attempt int, failure error) (time.Duration, bool) {
	e.failureCount++
	return e.backoff.Next(e.failureCount)
}

func (e *Engine) build(session uuid.UUID, records []record.Record) (endpoint.Entity, error) {
	metadata, err := encode.BuildMetadata(session, e.agent)
	if err != nil {
		return endpoint.Entity{}, err
	}
	body, err := encode.BuildBody(records)
	if err != nil {
		return endpoint.Entity{}, err
	}
	return e.endpoint.BuildEntity(metadata, body)
}

// finish records the outcome and runs the matching hook.
func (e *Engine) finish(out Outcome) {
	batch := stats.Batch{Endpoint: e.endpoint.Name(), Records: out.Records, Attempts: out.Attempts}

	e.hookMutex.RLock()
	onSuccess, onFailure := e.onSuccess, e.onFailure
	e.hookMutex.RUnlock()

	if out.Result == Succeeded {
		glog.V(2).Infof("sender: %v: delivered %d records (session %v, %d attempts)", e.endpoint.Name(), out.Records, out.Session, out.Attempts)
		e.recorder.BatchSucceeded(batch)
		if onSuccess != nil {
			onSuccess(out)
		}
		return
	}

	glog.Errorf("sender: %v: discarding %d records after %d attempts: %+v", e.endpoint.Name(), out.Records, out.Attempts, out.Err)
	e.recorder.BatchFailed(batch)
	if onFailure != nil {
		onFailure(out)
	} else {
		e.RegenerateSession()
	}
}
