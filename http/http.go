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

// Package http is the agent's local intake daemon. Capturing clients POST records to it, and it
// exposes delivery status.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/kcvdb/agent/record"
	"github.com/kcvdb/agent/stats"
)

// maxRequestBody bounds an intake request body after decompression.
const maxRequestBody = 32 << 20

// Agent is the part of agent.Agent that the intake daemon drives.
type Agent interface {
	Add(records ...record.Record)
	Flush()
	Session() uuid.UUID
	Pending() int
	Snapshot() stats.Snapshot
}

// Status is the body of GET /status.
type Status struct {
	Session uuid.UUID      `json:"session"`
	Pending int            `json:"pending"`
	Stats   stats.Snapshot `json:"stats"`
}

// Accepted is the body of a successful POST /records.
type Accepted struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
}

type HttpInterface struct {
	agent  Agent
	port   int
	router chi.Router
	srv    *http.Server
}

// NewHttpInterface creates a new agent interface that listens on the given port. The interface
// must be started with a call to Start().
func NewHttpInterface(agent Agent, port int) *HttpInterface {
	h := &HttpInterface{agent: agent, port: port}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Post("/records", h.handleRecords)
	r.Post("/flush", h.handleFlush)
	r.Get("/status", h.handleStatus)
	h.router = r
	return h
}

// Handler returns the daemon's routes.
func (h *HttpInterface) Handler() http.Handler {
	return h.router
}

func (h *HttpInterface) handleRecords(w http.ResponseWriter, r *http.Request) {
	body, err := requestBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := record.ParseAll(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.agent.Add(records...)
	writeJSON(w, http.StatusOK, Accepted{Accepted: len(records), Pending: h.agent.Pending()})
}

func (h *HttpInterface) handleFlush(w http.ResponseWriter, r *http.Request) {
	h.agent.Flush()
	w.WriteHeader(http.StatusAccepted)
}

func (h *HttpInterface) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Session: h.agent.Session(),
		Pending: h.agent.Pending(),
		Stats:   h.agent.Snapshot(),
	})
}

// requestBody returns the request body, decompressing it if the client sent it gzip encoded.
func requestBody(r *http.Request) (io.ReadCloser, error) {
	switch enc := strings.ToLower(r.Header.Get("Content-Encoding")); enc {
	case "", "identity":
		return r.Body, nil
	case "gzip":
		gr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		return gr, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("http: encoding response: %+v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		glog.V(2).Infof("http: %v %v: %d (%d bytes, %v, request %v)", r.Method, r.URL.Path, ww.Status(),
			ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// Start starts the HttpInterface in the background. It returns an error immediately if background
// starting fails, but otherwise returns nil. The errHandler callback receives any errors returned
// by the underlying call to ListenAndServe(). Note that the background service may fail quickly
// after startup, such as in the case of a port already in use.
func (h *HttpInterface) Start(errHandler func(error)) error {
	if h.srv != nil {
		return errors.New("already started")
	}
	h.srv = &http.Server{Addr: fmt.Sprintf("localhost:%v", h.port), Handler: h.router}
	go func() {
		errHandler(h.srv.ListenAndServe())
	}()
	return nil
}

// Shutdown initiates a graceful shutdown of the HttpInterface and blocks until the operation
// finishes.
func (h *HttpInterface) Shutdown() error {
	if h.srv == nil {
		return errors.New("not started")
	}
	err := h.srv.Shutdown(context.Background())
	h.srv = nil
	return err
}
