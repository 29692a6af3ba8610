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

import "time"

// LinearBackoff decides whether a failed exchange is retried and how long to pause first. The
// pause grows linearly: BaseWait before the first retry, then CoolDown more for each further one.
type LinearBackoff struct {
	MaxFailures int
	BaseWait    time.Duration
	CoolDown    time.Duration
}

// DefaultBackoff allows five retries, pausing 1s, 21s, 41s, 61s and 81s.
func DefaultBackoff() LinearBackoff {
	return LinearBackoff{
		MaxFailures: 5,
		BaseWait:    1 * time.Second,
		CoolDown:    20 * time.Second,
	}
}

// Next returns the pause after the failures'th consecutive failure, or false once failures exceeds
// MaxFailures.
func (b LinearBackoff) Next(failures int) (time.Duration, bool) {
	if failures < 1 || failures > b.MaxFailures {
		return 0, false
	}
	return b.BaseWait + time.Duration(failures-1)*b.CoolDown, true
}
