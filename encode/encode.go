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

// Package encode builds the two parts of a batch upload: a small metadata document identifying the
// sending session, and a gzip-compressed JSON array of records.
package encode

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kcvdb/agent/record"
)

const (
	// localTimeGMT is used for capture times with a zero UTC offset.
	localTimeGMT = "Mon, 02 Jan 2006 15:04:05 GMT"
	// localTimeOffset is used for every other offset.
	localTimeOffset = time.RFC1123Z
)

// Error wraps a serializer or compressor failure. These indicate a local bug and are never retried.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encode: %v: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type metadata struct {
	SessionId string `json:"SessionId"`
	AgentId   string `json:"AgentId"`
}

type wireRecord struct {
	RequestUri   string `json:"RequestUri"`
	RequestBody  string `json:"RequestBody"`
	ResponseBody string `json:"ResponseBody"`
	StatusCode   int    `json:"StatusCode"`
	HttpDate     string `json:"HttpDate"`
	LocalTime    string `json:"LocalTime"`
}

// BuildMetadata returns {"SessionId":<lowercase uuid>,"AgentId":<agent>}.
func BuildMetadata(session uuid.UUID, agent string) ([]byte, error) {
	data, err := json.MarshalNoEscape(metadata{
		SessionId: strings.ToLower(session.String()),
		AgentId:   agent,
	})
	if err != nil {
		return nil, &Error{"metadata", err}
	}
	return data, nil
}

// BuildBody returns the records as a gzip-compressed JSON array, in input order. An empty input
// produces a compressed "[]". Invalid UTF-8 in any string field is written as U+FFFD, so a body
// that is not valid UTF-8 is not delivered byte for byte.
func BuildBody(records []record.Record) ([]byte, error) {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = wireRecord{
			RequestUri:   r.RequestURI(),
			RequestBody:  r.RequestBody(),
			ResponseBody: r.ResponseBody(),
			StatusCode:   r.StatusCode(),
			HttpDate:     r.HTTPDate(),
			LocalTime:    FormatLocalTime(r.LocalTime()),
		}
	}

	buf := getBuffer()
	defer putBuffer(buf)
	gz := getGzipWriter(buf)
	defer gzipPool.Put(gz)

	enc := json.NewEncoder(gz)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		gz.Close()
		return nil, &Error{"body", err}
	}
	if err := gz.Close(); err != nil {
		return nil, &Error{"gzip", err}
	}

	// buf goes back to the pool; hand the caller its own copy.
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}

// FormatLocalTime formats t as an RFC 1123 date-time, e.g. "Sat, 07 May 2016 01:34:37 GMT". A zero
// offset is written as GMT; any other offset numerically, e.g. "Sat, 07 May 2016 10:34:37 +0900".
func FormatLocalTime(t time.Time) string {
	if _, offset := t.Zone(); offset == 0 {
		return t.Format(localTimeGMT)
	}
	return t.Format(localTimeOffset)
}

// ParseLocalTime parses a value produced by FormatLocalTime.
func ParseLocalTime(s string) (time.Time, error) {
	if t, err := time.Parse(localTimeGMT, s); err == nil {
		return t, nil
	}
	return time.Parse(localTimeOffset, s)
}
