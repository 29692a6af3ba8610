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

package agent

import (
	"errors"

	"github.com/kcvdb/agent/config"
	"github.com/kcvdb/agent/endpoint"
	"github.com/kcvdb/agent/endpoint/gzipsend"
	"github.com/kcvdb/agent/sender"
	"github.com/kcvdb/agent/stats"
	"github.com/kcvdb/agent/transport"
)

// Build builds a delivery Engine from a validated configuration.
func Build(cfg *config.Config, recorder stats.Recorder) (*sender.Engine, error) {
	ep, err := createEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client := transport.NewClient(transportOptions(cfg))
	return sender.NewEngine(ep, client, recorder, engineOptions(cfg)), nil
}

func createEndpoint(cfgep *config.Endpoint) (endpoint.Endpoint, error) {
	if cfgep == nil {
		return nil, errors.New("missing endpoint configuration")
	}
	if cfgep.Gzip != nil {
		return gzipsend.New(cfgep.Name, cfgep.Gzip.URL), nil
	}
	return nil, errors.New("unsupported endpoint")
}

func transportOptions(cfg *config.Config) transport.Options {
	return transport.Options{
		ConnectTimeout:  cfg.HTTP.ConnectTimeout(),
		ResponseTimeout: cfg.HTTP.ResponseTimeout(),
		RequestTimeout:  cfg.HTTP.RequestTimeout(),
		Headers:         cfg.HTTP.Headers,
		SuccessCodes:    cfg.Delivery.SuccessCodes,
	}
}

func engineOptions(cfg *config.Config) sender.Options {
	return sender.Options{
		Agent:    cfg.Agent,
		Capacity: cfg.Queue.Capacity,
		Backoff: sender.LinearBackoff{
			MaxFailures: cfg.Retry.Failures(),
			BaseWait:    cfg.Retry.BaseWait(),
			CoolDown:    cfg.Retry.CoolDown(),
		},
		MinInterval: cfg.Delivery.MinInterval(),
	}
}
