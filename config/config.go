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

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultAgent           = "logbook-kcvdb-client v1"
	DefaultCapacity        = 32
	DefaultMaxFailures     = 5
	DefaultBaseWaitMillis  = 1000
	DefaultCoolDownMillis  = 20000
	DefaultIntervalSeconds = 10
	DefaultConnectTimeout  = 10
	DefaultResponseTimeout = 10
	DefaultRequestTimeout  = 30
)

// Config contains configuration for the agent.
type Config struct {
	// Agent is the label sent as AgentId with every batch.
	Agent    string    `json:"agent"`
	Queue    *Queue    `json:"queue"`
	Retry    *Retry    `json:"retry"`
	Delivery *Delivery `json:"delivery"`
	HTTP     *HTTP     `json:"http"`
	Endpoint *Endpoint `json:"endpoint"`
}

// Queue configures the pending record queue.
type Queue struct {
	Capacity int `json:"capacity"`
}

// Retry configures the linear backoff applied within one delivery attempt.
type Retry struct {
	// MaxFailures is the number of failed attempts retried before giving up. Zero disables retries;
	// an absent value selects DefaultMaxFailures.
	MaxFailures    *int  `json:"maxFailures"`
	BaseWaitMillis int64 `json:"baseWaitMillis"`
	CoolDownMillis int64 `json:"coolDownMillis"`
}

// Delivery configures when batches are sent and how responses are classified.
type Delivery struct {
	// IntervalSeconds is the period between delivery attempts made by the agent.
	IntervalSeconds int64 `json:"intervalSeconds"`
	// MinIntervalMillis is the minimum time between two exchanges. Zero disables the spacing; an
	// absent value selects baseWaitMillis.
	MinIntervalMillis *int64 `json:"minIntervalMillis"`
	SuccessCodes      []int  `json:"successCodes"`
}

// HTTP configures the HTTP client.
type HTTP struct {
	ConnectTimeoutSeconds  int64             `json:"connectTimeoutSeconds"`
	ResponseTimeoutSeconds int64             `json:"responseTimeoutSeconds"`
	RequestTimeoutSeconds  int64             `json:"requestTimeoutSeconds"`
	Headers                map[string]string `json:"headers"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a Config for the public kcvdb endpoint with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in missing sections and values. maxFailures and minIntervalMillis are only
// defaulted when absent, so an explicit zero is kept.
func (c *Config) ApplyDefaults() {
	if c.Agent == "" {
		c.Agent = DefaultAgent
	}
	if c.Queue == nil {
		c.Queue = &Queue{}
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultCapacity
	}
	if c.Retry == nil {
		c.Retry = &Retry{}
	}
	if c.Retry.MaxFailures == nil {
		n := DefaultMaxFailures
		c.Retry.MaxFailures = &n
	}
	if c.Retry.BaseWaitMillis == 0 {
		c.Retry.BaseWaitMillis = DefaultBaseWaitMillis
	}
	if c.Retry.CoolDownMillis == 0 {
		c.Retry.CoolDownMillis = DefaultCoolDownMillis
	}
	if c.Delivery == nil {
		c.Delivery = &Delivery{}
	}
	if c.Delivery.IntervalSeconds == 0 {
		c.Delivery.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.Delivery.MinIntervalMillis == nil {
		ms := c.Retry.BaseWaitMillis
		c.Delivery.MinIntervalMillis = &ms
	}
	if c.HTTP == nil {
		c.HTTP = &HTTP{}
	}
	if c.HTTP.ConnectTimeoutSeconds == 0 {
		c.HTTP.ConnectTimeoutSeconds = DefaultConnectTimeout
	}
	if c.HTTP.ResponseTimeoutSeconds == 0 {
		c.HTTP.ResponseTimeoutSeconds = DefaultResponseTimeout
	}
	if c.HTTP.RequestTimeoutSeconds == 0 {
		c.HTTP.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if c.Endpoint == nil {
		c.Endpoint = &Endpoint{}
	}
	c.Endpoint.applyDefaults()
}

// Validation

type Validatable interface {
	Validate() error
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	var merr *multierror.Error
	if c.Agent == "" {
		merr = multierror.Append(merr, errors.New("missing agent label"))
	}
	if c.Queue == nil {
		merr = multierror.Append(merr, errors.New("missing queue section"))
	}
	if c.Retry == nil {
		merr = multierror.Append(merr, errors.New("missing retry section"))
	}
	if c.Delivery == nil {
		merr = multierror.Append(merr, errors.New("missing delivery section"))
	}
	if c.HTTP == nil {
		merr = multierror.Append(merr, errors.New("missing http section"))
	}
	if c.Endpoint == nil {
		merr = multierror.Append(merr, errors.New("missing endpoint section"))
	}
	for _, v := range []Validatable{c.Queue, c.Retry, c.Delivery, c.HTTP, c.Endpoint} {
		if isNil(v) {
			continue
		}
		if err := v.Validate(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (q *Queue) Validate() error {
	if q.Capacity < 1 {
		return fmt.Errorf("queue: capacity must be positive, got %v", q.Capacity)
	}
	return nil
}

func (r *Retry) Validate() error {
	var merr *multierror.Error
	if r.MaxFailures != nil && *r.MaxFailures < 0 {
		merr = multierror.Append(merr, fmt.Errorf("retry: maxFailures must not be negative, got %v", *r.MaxFailures))
	}
	if r.BaseWaitMillis < 0 {
		merr = multierror.Append(merr, fmt.Errorf("retry: baseWaitMillis must not be negative, got %v", r.BaseWaitMillis))
	}
	if r.CoolDownMillis < 0 {
		merr = multierror.Append(merr, fmt.Errorf("retry: coolDownMillis must not be negative, got %v", r.CoolDownMillis))
	}
	return merr.ErrorOrNil()
}

func (d *Delivery) Validate() error {
	var merr *multierror.Error
	if d.IntervalSeconds < 1 {
		merr = multierror.Append(merr, fmt.Errorf("delivery: intervalSeconds must be positive, got %v", d.IntervalSeconds))
	}
	if d.MinIntervalMillis != nil && *d.MinIntervalMillis < 0 {
		merr = multierror.Append(merr, fmt.Errorf("delivery: minIntervalMillis must not be negative, got %v", *d.MinIntervalMillis))
	}
	for _, code := range d.SuccessCodes {
		if code < 100 || code > 599 {
			merr = multierror.Append(merr, fmt.Errorf("delivery: invalid success code %v", code))
		}
	}
	return merr.ErrorOrNil()
}

func (h *HTTP) Validate() error {
	var merr *multierror.Error
	for name, v := range map[string]int64{
		"connectTimeoutSeconds":  h.ConnectTimeoutSeconds,
		"responseTimeoutSeconds": h.ResponseTimeoutSeconds,
		"requestTimeoutSeconds":  h.RequestTimeoutSeconds,
	} {
		if v < 0 {
			merr = multierror.Append(merr, fmt.Errorf("http: %v must not be negative, got %v", name, v))
		}
	}
	for k := range h.Headers {
		if k == "" {
			merr = multierror.Append(merr, errors.New("http: empty header name"))
		}
	}
	return merr.ErrorOrNil()
}

// Durations

// Failures returns the configured failure budget, or DefaultMaxFailures when absent.
func (r *Retry) Failures() int {
	if r.MaxFailures == nil {
		return DefaultMaxFailures
	}
	return *r.MaxFailures
}

func (r *Retry) BaseWait() time.Duration {
	return time.Duration(r.BaseWaitMillis) * time.Millisecond
}

func (r *Retry) CoolDown() time.Duration {
	return time.Duration(r.CoolDownMillis) * time.Millisecond
}

func (d *Delivery) Interval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

// MinInterval returns the configured send spacing. It is zero when absent; ApplyDefaults fills it in
// from the retry section.
func (d *Delivery) MinInterval() time.Duration {
	if d.MinIntervalMillis == nil {
		return 0
	}
	return time.Duration(*d.MinIntervalMillis) * time.Millisecond
}

func (h *HTTP) ConnectTimeout() time.Duration {
	return time.Duration(h.ConnectTimeoutSeconds) * time.Second
}

func (h *HTTP) ResponseTimeout() time.Duration {
	return time.Duration(h.ResponseTimeoutSeconds) * time.Second
}

func (h *HTTP) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSeconds) * time.Second
}
