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

// Package gzipsend implements the kcvdb gzip upload: a multipart/form-data request carrying a
// metadata part and a gzip-compressed record array part.
package gzipsend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/google/uuid"

	"github.com/kcvdb/agent/endpoint"
)

const (
	// DefaultURL is the public kcvdb gzip intake.
	DefaultURL = "https://kancollevdataapi.azurewebsites.net/api/send/gzip"

	metadataPart = "metadata"
	bodyPart     = "body"

	metadataContentType = "text/plain; charset=UTF-8"
	bodyContentType     = "application/octet-stream"
)

// Endpoint is an endpoint.Endpoint that uploads batches as multipart/form-data.
type Endpoint struct {
	name string
	url  string
}

// New creates an Endpoint named name that posts to url. An empty url selects DefaultURL.
func New(name, url string) *Endpoint {
	if url == "" {
		url = DefaultURL
	}
	return &Endpoint{name: name, url: url}
}

func (ep *Endpoint) Name() string {
	return ep.name
}

func (ep *Endpoint) URL() string {
	return ep.url
}

// BuildEntity writes the two parts with a fresh random boundary.
func (ep *Endpoint) BuildEntity(metadata, body []byte) (endpoint.Entity, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(uuid.New().String()); err != nil {
		return endpoint.Entity{}, fmt.Errorf("gzipsend: boundary: %w", err)
	}
	if err := writePart(mw, metadataPart, metadataContentType, metadata); err != nil {
		return endpoint.Entity{}, err
	}
	if err := writePart(mw, bodyPart, bodyContentType, body); err != nil {
		return endpoint.Entity{}, err
	}
	if err := mw.Close(); err != nil {
		return endpoint.Entity{}, fmt.Errorf("gzipsend: closing multipart writer: %w", err)
	}
	return endpoint.Entity{ContentType: mw.FormDataContentType(), Body: buf.Bytes()}, nil
}

func writePart(mw *multipart.Writer, name, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, name))
	h.Set("Content-Type", contentType)
	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("gzipsend: creating %v part: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("gzipsend: writing %v part: %w", name, err)
	}
	return nil
}
