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

package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kcvdb/agent/config"
	"github.com/kcvdb/agent/endpoint/gzipsend"
)

func intp(n int) *int {
	return &n
}

func TestParse(t *testing.T) {
	text := `
agent: logbook-kcvdb-client v1
queue:
  capacity: 64
retry:
  maxFailures: 3
  baseWaitMillis: 500
  coolDownMillis: 10000
delivery:
  intervalSeconds: 30
  successCodes: [200, 204]
http:
  connectTimeoutSeconds: 5
  responseTimeoutSeconds: 6
  requestTimeoutSeconds: 20
  headers:
    X-Client: logbook
endpoint:
  name: staging
  gzip:
    url: https://staging.example.com/api/send/gzip
`

	expected := &config.Config{
		Agent: "logbook-kcvdb-client v1",
		Queue: &config.Queue{Capacity: 64},
		Retry: &config.Retry{
			MaxFailures:    intp(3),
			BaseWaitMillis: 500,
			CoolDownMillis: 10000,
		},
		Delivery: &config.Delivery{
			IntervalSeconds: 30,
			SuccessCodes:    []int{200, 204},
		},
		HTTP: &config.HTTP{
			ConnectTimeoutSeconds:  5,
			ResponseTimeoutSeconds: 6,
			RequestTimeoutSeconds:  20,
			Headers:                map[string]string{"X-Client": "logbook"},
		},
		Endpoint: &config.Endpoint{
			Name: "staging",
			Gzip: &config.GzipEndpoint{URL: "https://staging.example.com/api/send/gzip"},
		},
	}

	parsed, err := config.Parse([]byte(text))
	if err != nil {
		t.Fatalf("Unexpected parse error: %+v", err)
	}
	if !reflect.DeepEqual(expected, parsed) {
		t.Fatalf("Parsed config: want=%+v, got=%+v", expected, parsed)
	}

	parsed.ApplyDefaults()
	if err := parsed.Validate(); err != nil {
		t.Fatalf("Unexpected validation error: %+v", err)
	}
	if want, got := int64(500), *parsed.Delivery.MinIntervalMillis; want != got {
		t.Fatalf("MinIntervalMillis: want=%v, got=%v", want, got)
	}
	if want, got := 10*time.Second, parsed.Retry.CoolDown(); want != got {
		t.Fatalf("CoolDown: want=%v, got=%v", want, got)
	}
	if want, got := 30*time.Second, parsed.Delivery.Interval(); want != got {
		t.Fatalf("Interval: want=%v, got=%v", want, got)
	}
}

func TestDefault(t *testing.T) {
	c := config.Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %+v", err)
	}
	if want, got := config.DefaultAgent, c.Agent; want != got {
		t.Fatalf("Agent: want=%v, got=%v", want, got)
	}
	if want, got := 32, c.Queue.Capacity; want != got {
		t.Fatalf("Capacity: want=%v, got=%v", want, got)
	}
	if want, got := 5, c.Retry.Failures(); want != got {
		t.Fatalf("MaxFailures: want=%v, got=%v", want, got)
	}
	if want, got := time.Second, c.Retry.BaseWait(); want != got {
		t.Fatalf("BaseWait: want=%v, got=%v", want, got)
	}
	if want, got := 20*time.Second, c.Retry.CoolDown(); want != got {
		t.Fatalf("CoolDown: want=%v, got=%v", want, got)
	}
	if want, got := time.Second, c.Delivery.MinInterval(); want != got {
		t.Fatalf("MinInterval: want=%v, got=%v", want, got)
	}
	if want, got := 10*time.Second, c.HTTP.ConnectTimeout(); want != got {
		t.Fatalf("ConnectTimeout: want=%v, got=%v", want, got)
	}
	if want, got := 10*time.Second, c.HTTP.ResponseTimeout(); want != got {
		t.Fatalf("ResponseTimeout: want=%v, got=%v", want, got)
	}
	if want, got := 30*time.Second, c.HTTP.RequestTimeout(); want != got {
		t.Fatalf("RequestTimeout: want=%v, got=%v", want, got)
	}
	if want, got := gzipsend.DefaultURL, c.Endpoint.Gzip.URL; want != got {
		t.Fatalf("Gzip.URL: want=%v, got=%v", want, got)
	}
}

func TestApplyDefaults_ExplicitZero(t *testing.T) {
	c, err := config.Parse([]byte("retry:\n  maxFailures: 0\n  baseWaitMillis: 250\ndelivery:\n  minIntervalMillis: 0\n"))
	if err != nil {
		t.Fatalf("Unexpected parse error: %+v", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("Unexpected validation error: %+v", err)
	}
	if want, got := 0, c.Retry.Failures(); want != got {
		t.Fatalf("Failures: want=%v, got=%v", want, got)
	}
	if want, got := time.Duration(0), c.Delivery.MinInterval(); want != got {
		t.Fatalf("MinInterval: want=%v, got=%v", want, got)
	}

	// Absent values still take their defaults.
	c, err = config.Parse([]byte("retry:\n  baseWaitMillis: 250\n"))
	if err != nil {
		t.Fatalf("Unexpected parse error: %+v", err)
	}
	c.ApplyDefaults()
	if want, got := config.DefaultMaxFailures, c.Retry.Failures(); want != got {
		t.Fatalf("Failures: want=%v, got=%v", want, got)
	}
	if want, got := 250*time.Millisecond, c.Delivery.MinInterval(); want != got {
		t.Fatalf("MinInterval: want=%v, got=%v", want, got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte("agent: test\nendpoint:\n  name: local\n  gzip:\n    url: http://localhost:8080/upload\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %+v", err)
	}
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %+v", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %+v", err)
	}
	if want, got := "http://localhost:8080/upload", c.Endpoint.Gzip.URL; want != got {
		t.Fatalf("Gzip.URL: want=%v, got=%v", want, got)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Run("missing sections", func(t *testing.T) {
		err := (&config.Config{}).Validate()
		merr, ok := err.(*multierror.Error)
		if !ok {
			t.Fatalf("expected *multierror.Error, got: %+v", err)
		}
		// agent, queue, retry, delivery, http, endpoint
		if want, got := 6, len(merr.Errors); want != got {
			t.Fatalf("error count: want=%v, got=%v (%v)", want, got, err)
		}
	})

	t.Run("all problems reported", func(t *testing.T) {
		c := config.Default()
		c.Queue.Capacity = -1
		c.Retry.CoolDownMillis = -5
		c.Retry.MaxFailures = intp(-1)
		c.Delivery.SuccessCodes = []int{200, 42}
		c.HTTP.RequestTimeoutSeconds = -1
		err := c.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, fragment := range []string{"capacity", "coolDownMillis", "maxFailures", "success code 42", "requestTimeoutSeconds"} {
			if !strings.Contains(err.Error(), fragment) {
				t.Fatalf("expected %q in error, got: %v", fragment, err)
			}
		}
	})

	cases := []struct {
		name     string
		endpoint *config.Endpoint
	}{
		{"missing name", &config.Endpoint{Gzip: &config.GzipEndpoint{URL: "https://host/api"}}},
		{"missing type", &config.Endpoint{Name: "kcvdb"}},
		{"missing url", &config.Endpoint{Name: "kcvdb", Gzip: &config.GzipEndpoint{}}},
		{"bad scheme", &config.Endpoint{Name: "kcvdb", Gzip: &config.GzipEndpoint{URL: "ftp://host/api"}}},
		{"no host", &config.Endpoint{Name: "kcvdb", Gzip: &config.GzipEndpoint{URL: "https:///api"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Endpoint = c.endpoint
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
