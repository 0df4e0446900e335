// Copyright 2020 Staysail Systems, Inc. <info@staysail.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command ipcsvcd serves the demo ICalc contract over local IPC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"go.nanomsg.org/ipcsvc"
	"go.nanomsg.org/ipcsvc/internal/config"
	"go.nanomsg.org/ipcsvc/internal/discovery"
	"go.nanomsg.org/ipcsvc/internal/logging"
	"go.nanomsg.org/ipcsvc/rpc/server"
	"go.nanomsg.org/ipcsvc/service"
)

type flagOptions struct {
	Config    string   `long:"config" short:"c" description:"Configuration file path (YAML)"`
	Name      string   `long:"name" description:"Endpoint name"`
	Listen    []string `long:"listen" short:"l" description:"URL to listen on, may be repeated"`
	Workers   int      `long:"workers" short:"w" description:"Number of serving workers"`
	LogLevel  string   `long:"log-level" description:"Log level (debug, info, warn, error)"`
	RateLimit float64  `long:"rate-limit" description:"Maximum new sessions per second, 0 for none"`
	Dev       bool     `long:"dev" description:"Development logging"`
}

// apply overlays the flags that were given on cfg.
func (o *flagOptions) apply(cfg *config.Config) {
	if o.Name != "" {
		cfg.Name = o.Name
	}
	if len(o.Listen) > 0 {
		cfg.Listen = o.Listen
	}
	if o.Workers != 0 {
		cfg.Workers = o.Workers
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.RateLimit != 0 {
		cfg.RateLimit.PerSecond = o.RateLimit
	}
	if o.Dev {
		cfg.Log.Development = true
	}
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err = cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, sync, err := logging.NewZapLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, logger); err != nil {
		logger.Errorf("Failed to run: %v", err)
		sync()
		os.Exit(1)
	}
}

// run serves until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	registry := service.NewRegistry()
	if _, err := registerCalc(registry); err != nil {
		return err
	}

	srv := server.NewServer(registry)
	defer srv.Close()

	err := srv.SetOption(
		server.OptionName(cfg.Name),
		server.OptionLogger{Logger: logger},
		ipcsvc.OptionRateLimit{PerSecond: cfg.RateLimit.PerSecond, Burst: cfg.RateLimit.Burst},
	)
	if err != nil {
		return err
	}
	for _, url := range cfg.Listen {
		if err = srv.Listen(url); err != nil {
			return fmt.Errorf("listen %s: %w", url, err)
		}
	}
	srv.ServeAsync(cfg.Workers)
	logger.Infof("serving %v with %d workers", registry.Contracts(), cfg.Workers)

	if cfg.Discovery.Enabled() {
		a, err := discovery.NewEtcdAnnouncer(cfg.Discovery, cfg.Name, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warnf("discovery: %v", err)
			}
		}()
		if err = a.Announce(ctx, registry.Contracts(), cfg.Listen); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Infof("shutting down")
	return nil
}
