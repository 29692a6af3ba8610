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

// Package record defines Record, a single captured API request/response exchange destined for the
// collection endpoint.
package record

import (
	"fmt"
	"time"
)

// Field names, as they appear in the intake and wire formats.
const (
	FieldRequestURI   = "RequestUri"
	FieldRequestBody  = "RequestBody"
	FieldResponseBody = "ResponseBody"
	FieldStatusCode   = "StatusCode"
	FieldHTTPDate     = "HttpDate"
	FieldLocalTime    = "LocalTime"
)

// ValidationError is returned when a Record is constructed with a missing or invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record: %v: %v", e.Field, e.Reason)
}

// Record is an immutable captured exchange. The zero value is not a valid Record; use New or
// Parse.
type Record struct {
	requestURI   string
	requestBody  string
	responseBody string
	statusCode   int
	httpDate     string
	localTime    time.Time
}

// New builds a validated Record. The request and response bodies may be empty; every other field
// must carry a value. httpDate is kept verbatim and never parsed.
func New(requestURI, requestBody, responseBody string, statusCode int, httpDate string, localTime time.Time) (Record, error) {
	r := Record{
		requestURI:   requestURI,
		requestBody:  requestBody,
		responseBody: responseBody,
		statusCode:   statusCode,
		httpDate:     httpDate,
		localTime:    localTime,
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (r Record) validate() error {
	if r.requestURI == "" {
		return &ValidationError{FieldRequestURI, "missing"}
	}
	if r.statusCode < 100 || r.statusCode > 999 {
		return &ValidationError{FieldStatusCode, fmt.Sprintf("invalid status code %d", r.statusCode)}
	}
	if r.httpDate == "" {
		return &ValidationError{FieldHTTPDate, "missing"}
	}
	if r.localTime.IsZero() {
		return &ValidationError{FieldLocalTime, "missing"}
	}
	return nil
}

// RequestURI returns the absolute URI of the observed request.
func (r Record) RequestURI() string { return r.requestURI }

// RequestBody returns the raw request payload.
func (r Record) RequestBody() string { return r.requestBody }

// ResponseBody returns the raw response payload.
func (r Record) ResponseBody() string { return r.responseBody }

// StatusCode returns the HTTP status of the observed response.
func (r Record) StatusCode() int { return r.statusCode }

// HTTPDate returns the observed response's Date header, verbatim.
func (r Record) HTTPDate() string { return r.httpDate }

// LocalTime returns the local capture time, including its UTC offset.
func (r Record) LocalTime() time.Time { return r.localTime }

// Equal reports whether r and o hold the same values. Capture times are compared as instants with
// matching offsets.
func (r Record) Equal(o Record) bool {
	_, ro := r.localTime.Zone()
	_, oo := o.localTime.Zone()
	return r.requestURI == o.requestURI &&
		r.requestBody == o.requestBody &&
		r.responseBody == o.responseBody &&
		r.statusCode == o.statusCode &&
		r.httpDate == o.httpDate &&
		r.localTime.Equal(o.localTime) &&
		ro == oo
}

func (r Record) String() string {
	return fmt.Sprintf("Record{%v %d at %v}", r.requestURI, r.statusCode, r.localTime.Format(time.RFC3339))
}
