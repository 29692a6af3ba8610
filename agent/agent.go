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

// Package agent runs a delivery Engine in the background: records are added from any goroutine and
// a worker delivers them periodically or on demand.
package agent

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/kcvdb/agent/clock"
	"github.com/kcvdb/agent/config"
	"github.com/kcvdb/agent/record"
	"github.com/kcvdb/agent/sender"
	"github.com/kcvdb/agent/stats"
)

var finalDeliveryTimeout = flag.Duration("final_delivery_timeout", 30*time.Second, "maximum time spent delivering pending records at shutdown")

// Agent owns an Engine and a worker goroutine that calls Deliver every interval, whenever Flush is
// called, and once more at Close.
type Agent struct {
	engine       *sender.Engine
	stats        *stats.Basic
	clock        clock.Clock
	interval     time.Duration
	finalTimeout time.Duration

	// ctx is cancelled when an in-flight delivery outlives the final delivery timeout at Close.
	ctx    context.Context
	cancel context.CancelFunc

	// abortErr holds the failure of a delivery that was still running when Close began.
	mutex    sync.Mutex
	closing  bool
	abortErr error

	flush     chan struct{}
	close     chan struct{}
	wait      sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates and starts an Agent from a configuration. Defaults are applied and the
// configuration is validated first.
func New(cfg *config.Config) (*Agent, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := stats.NewBasic()
	engine, err := Build(cfg, s)
	if err != nil {
		return nil, err
	}
	glog.Infof("agent: delivering to %v every %v as %q", cfg.Endpoint.Gzip.URL, cfg.Delivery.Interval(), cfg.Agent)
	return newAgent(engine, s, cfg.Delivery.Interval(), *finalDeliveryTimeout, clock.NewClock()), nil
}

func newAgent(engine *sender.Engine, s *stats.Basic, interval, finalTimeout time.Duration, clock clock.Clock) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		engine:       engine,
		stats:        s,
		clock:        clock,
		interval:     interval,
		finalTimeout: finalTimeout,
		ctx:          ctx,
		cancel:       cancel,
		flush:        make(chan struct{}, 1),
		close:        make(chan struct{}),
	}
	a.wait.Add(1)
	go a.run()
	return a
}

// Add queues records for the next delivery.
func (a *Agent) Add(records ...record.Record) {
	for _, r := range records {
		a.engine.Add(r)
	}
}

// Flush asks the worker to deliver as soon as it is idle. It does not wait for the delivery.
func (a *Agent) Flush() {
	select {
	case a.flush <- struct{}{}:
	default:
		// A flush is already pending.
	}
}

func (a *Agent) Session() uuid.UUID {
	return a.engine.Session()
}

func (a *Agent) Pending() int {
	return a.engine.Pending()
}

func (a *Agent) Snapshot() stats.Snapshot {
	return a.stats.Snapshot()
}

// Close stops the worker and makes one final delivery of whatever is still queued. A delivery
// already in progress is given the final delivery timeout to finish before it is cancelled; the
// final delivery gets the same bound. If the in-progress delivery fails, its batch is discarded
// (along with anything queued behind it when the session is reset) and the failure is reported in
// the returned error. It is safe to call more than once.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		a.mutex.Lock()
		a.closing = true
		a.mutex.Unlock()

		close(a.close)
		deadline := time.AfterFunc(a.finalTimeout, a.cancel)
		a.wait.Wait()
		deadline.Stop()
		a.cancel()

		var merr *multierror.Error
		a.mutex.Lock()
		if a.abortErr != nil {
			merr = multierror.Append(merr, a.abortErr)
		}
		a.mutex.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), a.finalTimeout)
		defer cancel()
		out, err := a.engine.Deliver(ctx)
		if err != nil {
			merr = multierror.Append(merr, err)
		} else if out.Result == sender.Failed {
			merr = multierror.Append(merr, out.Err)
		}
		a.closeErr = merr.ErrorOrNil()
	})
	return a.closeErr
}

func (a *Agent) run() {
	defer a.wait.Done()
	for {
		timer := a.clock.NewTimerAt(a.clock.Now().Add(a.interval))
		select {
		case <-timer.GetC():
			a.deliver()
		case <-a.flush:
			a.deliver()
		case <-a.close:
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (a *Agent) deliver() {
	out, err := a.engine.Deliver(a.ctx)
	if err == nil && out.Result == sender.Failed {
		err = out.Err
	}
	a.mutex.Lock()
	if a.closing && err != nil {
		a.abortErr = fmt.Errorf("delivery in progress at close: %w", err)
	}
	a.mutex.Unlock()

	if out.Result == sender.Failed {
		glog.Warningf("agent: failed batch of %d records (session %v): %+v", out.Records, out.Session, out.Err)
	} else if err != nil {
		glog.Errorf("agent: delivery: %+v", err)
	} else if out.Result != sender.Idle {
		glog.V(1).Infof("agent: %v batch of %d records (session %v)", out.Result, out.Records, out.Session)
	}
}
