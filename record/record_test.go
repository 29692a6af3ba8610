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

package record_test

import (
	"errors"
	"testing"
	"time"

	"github.com/kcvdb/agent/record"
)

var captured = time.Date(2016, time.May, 7, 1, 34, 37, 0, time.UTC)

func TestNew(t *testing.T) {
	r, err := record.New("http://203.104.209.71/kcsapi/api_port/port", "api_token=x", "svdata={}", 200, "Sat, 07 May 2016 01:34:30 GMT", captured)
	if err != nil {
		t.Fatalf("New: unexpected error: %+v", err)
	}
	if want, got := "http://203.104.209.71/kcsapi/api_port/port", r.RequestURI(); want != got {
		t.Fatalf("RequestURI: want=%v, got=%v", want, got)
	}
	if want, got := "api_token=x", r.RequestBody(); want != got {
		t.Fatalf("RequestBody: want=%v, got=%v", want, got)
	}
	if want, got := "svdata={}", r.ResponseBody(); want != got {
		t.Fatalf("ResponseBody: want=%v, got=%v", want, got)
	}
	if want, got := 200, r.StatusCode(); want != got {
		t.Fatalf("StatusCode: want=%v, got=%v", want, got)
	}
	if want, got := "Sat, 07 May 2016 01:34:30 GMT", r.HTTPDate(); want != got {
		t.Fatalf("HTTPDate: want=%v, got=%v", want, got)
	}
	if want, got := captured, r.LocalTime(); !want.Equal(got) {
		t.Fatalf("LocalTime: want=%v, got=%v", want, got)
	}

	again, _ := record.New("http://203.104.209.71/kcsapi/api_port/port", "api_token=x", "svdata={}", 200, "Sat, 07 May 2016 01:34:30 GMT", captured)
	if !r.Equal(again) {
		t.Fatal("records built from the same values should be equal")
	}
	other, _ := record.New("http://203.104.209.71/kcsapi/api_port/port", "api_token=x", "svdata={}", 301, "Sat, 07 May 2016 01:34:30 GMT", captured)
	if r.Equal(other) {
		t.Fatal("records with different status codes should not be equal")
	}
}

func TestNew_EmptyBodiesAllowed(t *testing.T) {
	if _, err := record.New("http://host/api", "", "", 204, "Sat, 07 May 2016 01:34:30 GMT", captured); err != nil {
		t.Fatalf("empty bodies should be accepted, got: %+v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name       string
		uri        string
		statusCode int
		httpDate   string
		localTime  time.Time
		field      string
	}{
		{"missing uri", "", 200, "Sat, 07 May 2016 01:34:30 GMT", captured, record.FieldRequestURI},
		{"zero status", "http://host/api", 0, "Sat, 07 May 2016 01:34:30 GMT", captured, record.FieldStatusCode},
		{"missing date", "http://host/api", 200, "", captured, record.FieldHTTPDate},
		{"missing local time", "http://host/api", 200, "Sat, 07 May 2016 01:34:30 GMT", time.Time{}, record.FieldLocalTime},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := record.New(c.uri, "req", "resp", c.statusCode, c.httpDate, c.localTime)
			var ve *record.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got: %+v", err)
			}
			if want, got := c.field, ve.Field; want != got {
				t.Fatalf("ValidationError.Field: want=%v, got=%v", want, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("rfc3339 local time", func(t *testing.T) {
		r, err := record.Parse([]byte(`{
			"RequestUri": "http://host/kcsapi/api_get_member/deck",
			"RequestBody": "",
			"ResponseBody": "svdata={\"api_result\":1}",
			"StatusCode": 200,
			"HttpDate": "Sat, 07 May 2016 01:34:30 GMT",
			"LocalTime": "2016-05-07T10:34:37+09:00"
		}`))
		if err != nil {
			t.Fatalf("Parse: unexpected error: %+v", err)
		}
		if want, got := `svdata={"api_result":1}`, r.ResponseBody(); want != got {
			t.Fatalf("ResponseBody: want=%v, got=%v", want, got)
		}
		if !captured.Equal(r.LocalTime()) {
			t.Fatalf("LocalTime: want=%v, got=%v", captured, r.LocalTime())
		}
		if _, offset := r.LocalTime().Zone(); offset != 9*60*60 {
			t.Fatalf("LocalTime offset: want=%v, got=%v", 9*60*60, offset)
		}
	})

	t.Run("rfc1123 local time", func(t *testing.T) {
		r, err := record.Parse([]byte(`{"RequestUri":"u","RequestBody":"a","ResponseBody":"b","StatusCode":500,"HttpDate":"d","LocalTime":"Sat, 07 May 2016 01:34:37 GMT"}`))
		if err != nil {
			t.Fatalf("Parse: unexpected error: %+v", err)
		}
		if !captured.Equal(r.LocalTime()) {
			t.Fatalf("LocalTime: want=%v, got=%v", captured, r.LocalTime())
		}
	})

	t.Run("unpadded day", func(t *testing.T) {
		for _, lt := range []string{"Sat, 7 May 2016 01:34:37 GMT", "Sat, 7 May 2016 10:34:37 +0900"} {
			r, err := record.Parse([]byte(`{"RequestUri":"u","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"` + lt + `"}`))
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %+v", lt, err)
			}
			if !captured.Equal(r.LocalTime()) {
				t.Fatalf("LocalTime(%q): want=%v, got=%v", lt, captured, r.LocalTime())
			}
		}
	})

	t.Run("absent body is rejected", func(t *testing.T) {
		_, err := record.Parse([]byte(`{"RequestUri":"u","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"2016-05-07T01:34:37Z"}`))
		var ve *record.ValidationError
		if !errors.As(err, &ve) || ve.Field != record.FieldRequestBody {
			t.Fatalf("expected RequestBody ValidationError, got: %+v", err)
		}
	})

	t.Run("bad local time is rejected", func(t *testing.T) {
		_, err := record.Parse([]byte(`{"RequestUri":"u","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"yesterday"}`))
		var ve *record.ValidationError
		if !errors.As(err, &ve) || ve.Field != record.FieldLocalTime {
			t.Fatalf("expected LocalTime ValidationError, got: %+v", err)
		}
	})
}

func TestParseAll(t *testing.T) {
	records, err := record.ParseAll([]byte(`[
		{"RequestUri":"u1","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"2016-05-07T01:34:37Z"},
		{"RequestUri":"u2","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"2016-05-07T01:34:38Z"}
	]`))
	if err != nil {
		t.Fatalf("ParseAll: unexpected error: %+v", err)
	}
	if want, got := 2, len(records); want != got {
		t.Fatalf("len(records): want=%v, got=%v", want, got)
	}
	if want, got := "u2", records[1].RequestURI(); want != got {
		t.Fatalf("records[1].RequestURI: want=%v, got=%v", want, got)
	}

	single, err := record.ParseAll([]byte(` {"RequestUri":"u1","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"2016-05-07T01:34:37Z"}`))
	if err != nil {
		t.Fatalf("ParseAll single: unexpected error: %+v", err)
	}
	if want, got := 1, len(single); want != got {
		t.Fatalf("len(single): want=%v, got=%v", want, got)
	}

	_, err = record.ParseAll([]byte(`[{"RequestUri":"u1","RequestBody":"a","ResponseBody":"b","StatusCode":200,"HttpDate":"d","LocalTime":"2016-05-07T01:34:37Z"},{"RequestUri":"u2"}]`))
	var ve *record.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for second element, got: %+v", err)
	}

	if _, err := record.ParseAll([]byte("   ")); err == nil {
		t.Fatal("expected error for empty input")
	}
}
