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

package main

import (
	"flag"
	"fmt"
	httplib "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/kcvdb/agent/agent"
	"github.com/kcvdb/agent/config"
	"github.com/kcvdb/agent/http"
)

var configPath = flag.String("config", "", "configuration file (defaults to the public kcvdb endpoint)")
var localPort = flag.Int("local-port", 0, "local HTTP daemon port")
var noHttp = flag.Bool("no-http", false, "do not start the HTTP daemon")

// main is the entry point to the standalone agent. It constructs a new agent.Agent with the config
// file specified using the --config flag, and it starts the http interface. SIGINT or SIGTERM will
// initiate a graceful shutdown that makes one last delivery attempt.
func main() {
	flag.Parse()

	if *localPort <= 0 && !*noHttp {
		fmt.Fprintln(os.Stderr, "local-port must be > 0 (or use --no-http)")
		flag.Usage()
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	a, err := agent.New(cfg)
	if err != nil {
		exitf("startup: %+v", err)
	}

	var rest *http.HttpInterface
	if !*noHttp {
		rest = http.NewHttpInterface(a, *localPort)
		if err := rest.Start(func(err error) {
			// Process async http errors (which may be an immediate port in use error).
			if err != httplib.ErrServerClosed {
				exitf("http: %+v", err)
			}
		}); err != nil {
			exitf("startup: %+v", err)
		}
		infof("Listening locally on port %v", *localPort)
	} else {
		infof("Not starting HTTP daemon")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	infof("Shutting down...")
	if rest != nil {
		rest.Shutdown()
	}
	if err := a.Close(); err != nil {
		glog.Warningf("shutdown: %+v", err)
	}
	glog.Flush()
}

// infof prints a message to stdout and also logs it to the INFO log.
func infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(msg)
	glog.Info(msg)
}

// exitf prints a message to stderr, logs it to the FATAL log, and exits.
func exitf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, msg)
	glog.Exit(msg)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitf("invalid configuration file: %+v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		exitf("invalid configuration file: %+v", err)
	}
	return cfg
}
