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
	"sync"
	"testing"
	"time"

	"github.com/kcvdb/agent/clock"
)

// MockClock is an extension of Clock that adds the ability to set the current time. Now returns
// the value passed to SetNow until a new value is set.
//
// Timers created by a MockClock fire once the clock's time is set to or after their fire time.
// Components under test should compute fire times from a single call to Now() and create timers
// with NewTimerAt, so that advancing the clock between the two calls can't skew the deadline.
type MockClock interface {
	clock.Clock
	SetNow(time.Time)

	// GetNextFireTime returns the time that the next Timer will fire, or the zero value if no timers
	// are set.
	GetNextFireTime() time.Time
}

// NewMockClock creates a new MockClock instance that initially returns time zero.
func NewMockClock() MockClock {
	return &mockClock{
		timers: make(map[*mockTimer]bool),
	}
}

// WaitForTimer waits for up to ~5 seconds for a timer to be set on mc with fire time expected.
func WaitForTimer(t *testing.T, mc MockClock, expected time.Time) {
	t.Helper()
	for i := 0; i < 5000; i++ {
		if mc.GetNextFireTime().Equal(expected) {
			return
		}
		time.Sleep(1 * time.Millisecond)
	}
	t.Fatalf("No timer set for expected time %v after delay (next: %v)", expected, mc.GetNextFireTime())
}

// AdvanceThrough steps mc through a sequence of timer waits. For each wait it blocks until a timer
// is pending at now+wait, then moves the clock to that time. It returns the final time.
func AdvanceThrough(t *testing.T, mc MockClock, now time.Time, waits []time.Duration) time.Time {
	t.Helper()
	for _, w := range waits {
		next := now.Add(w)
		WaitForTimer(t, mc, next)
		now = next
		mc.SetNow(now)
	}
	return now
}

type mockClock struct {
	mutex  sync.Mutex
	now    time.Time
	timers map[*mockTimer]bool
}

func (mc *mockClock) Now() time.Time {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.now
}

func (mc *mockClock) SetNow(now time.Time) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.now = now
	for mt := range mc.timers {
		// this call might result in the timer being removed from the set.
		mt.maybeFire(now)
	}
}

func (mc *mockClock) GetNextFireTime() time.Time {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	var earliest time.Time
	for mt := range mc.timers {
		if !mt.done && (earliest.IsZero() || mt.fireAt.Before(earliest)) {
			earliest = mt.fireAt
		}
	}
	return earliest
}

func (mc *mockClock) NewTimer(d time.Duration) clock.Timer {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.newTimer(mc.now.Add(d))
}

func (mc *mockClock) NewTimerAt(at time.Time) clock.Timer {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.newTimer(at)
}

// Assumes mc.mutex is held.
func (mc *mockClock) newTimer(at time.Time) clock.Timer {
	mt := &mockTimer{
		c:      make(chan time.Time, 1),
		owner:  mc,
		fireAt: at,
	}
	mc.timers[mt] = true

	// Handles timers whose fire time has already passed.
	mt.maybeFire(mc.now)
	return mt
}

type mockTimer struct {
	c      chan time.Time
	owner  *mockClock
	fireAt time.Time
	done   bool
}

func (mt *mockTimer) GetC() <-chan time.Time {
	return mt.c
}

func (mt *mockTimer) Stop() bool {
	mt.owner.mutex.Lock()
	defer mt.owner.mutex.Unlock()
	if mt.done {
		return false
	}
	mt.done = true
	delete(mt.owner.timers, mt)
	return true
}

// maybeFire fires a timer event into the channel if appropriate mock time has elapsed and the timer
// hasn't already fired or been stopped. Assumes that mt.owner.mutex is held.
func (mt *mockTimer) maybeFire(t time.Time) {
	if mt.done || mt.fireAt.After(t) {
		return
	}
	mt.c <- t
	mt.done = true
	delete(mt.owner.timers, mt)
}
