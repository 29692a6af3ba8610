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

package record

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Layouts accepted for LocalTime in the intake form.
var localTimeLayouts = []string{
	time.RFC3339Nano,
	"Mon, 02 Jan 2006 15:04:05 GMT",
	time.RFC1123Z,
	time.RFC1123,
	// Day of month without a leading zero.
	"Mon, 2 Jan 2006 15:04:05 GMT",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// intake mirrors the JSON form accepted by Parse. Pointer fields distinguish an absent key from an
// empty value.
type intake struct {
	RequestUri   *string `json:"RequestUri"`
	RequestBody  *string `json:"RequestBody"`
	ResponseBody *string `json:"ResponseBody"`
	StatusCode   *int    `json:"StatusCode"`
	HttpDate     *string `json:"HttpDate"`
	LocalTime    *string `json:"LocalTime"`
}

func (in *intake) record() (Record, error) {
	switch {
	case in.RequestUri == nil:
		return Record{}, &ValidationError{FieldRequestURI, "missing"}
	case in.RequestBody == nil:
		return Record{}, &ValidationError{FieldRequestBody, "missing"}
	case in.ResponseBody == nil:
		return Record{}, &ValidationError{FieldResponseBody, "missing"}
	case in.StatusCode == nil:
		return Record{}, &ValidationError{FieldStatusCode, "missing"}
	case in.HttpDate == nil:
		return Record{}, &ValidationError{FieldHTTPDate, "missing"}
	case in.LocalTime == nil:
		return Record{}, &ValidationError{FieldLocalTime, "missing"}
	}
	lt, err := parseLocalTime(*in.LocalTime)
	if err != nil {
		return Record{}, err
	}
	return New(*in.RequestUri, *in.RequestBody, *in.ResponseBody, *in.StatusCode, *in.HttpDate, lt)
}

func parseLocalTime(s string) (time.Time, error) {
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{FieldLocalTime, fmt.Sprintf("unparseable time %q", s)}
}

// Parse decodes a single Record from its JSON intake form. All six keys are required. LocalTime
// may be given as RFC 3339 or RFC 1123.
func Parse(data []byte) (Record, error) {
	var in intake
	if err := json.Unmarshal(data, &in); err != nil {
		return Record{}, err
	}
	return in.record()
}

// ParseAll decodes either a single JSON object or a JSON array of objects. It fails on the first
// invalid element, reporting its index.
func ParseAll(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("record: empty input")
	}
	if trimmed[0] != '[' {
		r, err := Parse(trimmed)
		if err != nil {
			return nil, err
		}
		return []Record{r}, nil
	}
	var ins []intake
	if err := json.Unmarshal(trimmed, &ins); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(ins))
	for i := range ins {
		r, err := ins[i].record()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}
