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
	"net/url"
	"reflect"

	"github.com/kcvdb/agent/endpoint/gzipsend"
)

const (
	DefaultEndpointName = "kcvdb"
	DefaultGzipURL      = gzipsend.DefaultURL
)

// Endpoint describes the remote endpoint that batches are delivered to.
type Endpoint struct {
	Name string        `json:"name"`
	Gzip *GzipEndpoint `json:"gzip"`
}

// GzipEndpoint is the kcvdb multipart upload with a gzip-compressed body.
type GzipEndpoint struct {
	URL string `json:"url"`
}

func (e *Endpoint) applyDefaults() {
	if e.Name == "" {
		e.Name = DefaultEndpointName
	}
	if e.Gzip == nil {
		e.Gzip = &GzipEndpoint{}
	}
	if e.Gzip.URL == "" {
		e.Gzip.URL = DefaultGzipURL
	}
}

func (e *Endpoint) Validate() error {
	if e.Name == "" {
		return errors.New("endpoint: missing name")
	}

	types := 0
	for _, v := range []Validatable{e.Gzip} {
		if isNil(v) {
			continue
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("endpoint %v: %w", e.Name, err)
		}
		types++
	}

	if types == 0 {
		return fmt.Errorf("endpoint %v: missing type configuration", e.Name)
	}
	return nil
}

func (e *GzipEndpoint) Validate() error {
	if e.URL == "" {
		return errors.New("gzip: missing url")
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("gzip: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gzip: url must be http or https, got %q", e.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("gzip: url has no host: %q", e.URL)
	}
	return nil
}

func isNil(v Validatable) bool {
	return v == nil || reflect.ValueOf(v).IsNil()
}
