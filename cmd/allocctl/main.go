/*
 * Copyright (C) 2019-Present Pivotal Software, Inc. All rights reserved.
 *
 * This program and the accompanying materials are made available under the terms
 * of the Apache License, Version 2.0 (the "License”); you may not use this file
 * except in compliance with the License. You may obtain a copy of the License at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed
 * under the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR
 * CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logrusorgru/aurora"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"diskalloc/pkg/allocator"
	"diskalloc/pkg/config"
	"diskalloc/pkg/data"
	"diskalloc/pkg/logging"
	"diskalloc/pkg/serve"
)

var (
	au         = aurora.NewAurora(true)
	configPath = flag.String("config", "", "Path to a YAML configuration file")
	dbPath     = flag.String("db", "", "SQLite database file; overrides the configuration")
	listenAddr = flag.String("addr", "", "Listen address for 'serve'; overrides the configuration")
	debug      = flag.Bool("debug", false, "Log at debug level with a development logger")
	noColor    = flag.Bool("noColor", false, "Disable coloured report output")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %s\n", err.Error())
		os.Exit(1)
	}
	applyFlags(&cfg)

	if *noColor {
		au = aurora.NewAurora(false)
	}

	os.Exit(execute(context.Background(), cfg, flag.Arg(0), os.Stdout, os.Stderr))
}

// execute runs command and returns the process exit code. It returns rather
// than exiting so that the logger is flushed and the database closed on
// every path.
func execute(ctx context.Context, cfg config.Config, command string, stdout, stderr io.Writer) int {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %s\n", err.Error())
		return 1
	}
	defer logger.Sync()

	backend, err := data.NewSQLiteBackend(cfg.Database.Path, data.Options{
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		logger.Errorw("could not open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer backend.Close()

	err = NewRunner(backend, cfg, logger).Run(ctx, command, stdout)
	if err != nil {
		logger.Errorw("command failed", "command", command, "error", err)
		return 1
	}

	return 0
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] create|clear|drop|report|serve\n\n", os.Args[0])
	flag.PrintDefaults()
}

func applyFlags(cfg *config.Config) {
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *listenAddr != "" {
		cfg.Serve.Addr = *listenAddr
	}
	if *debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
}

type Runner interface {
	Allocator() allocator.Allocator
	Run(ctx context.Context, command string, writer io.Writer) error
	Report(writer io.Writer) error
}

type runner struct {
	backend data.Backend
	alloc   allocator.Allocator
	cfg     config.Config
	logger  *zap.SugaredLogger
}

func NewRunner(backend data.Backend, cfg config.Config, logger *zap.SugaredLogger) Runner {
	return &runner{
		backend: backend,
		alloc:   allocator.New(backend, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

func (r *runner) Allocator() allocator.Allocator {
	return r.alloc
}

func (r *runner) Run(ctx context.Context, command string, writer io.Writer) error {
	switch command {
	case "create":
		return r.schema(writer, "Created", data.CreateTables)
	case "clear":
		return r.schema(writer, "Cleared", data.ClearTables)
	case "drop":
		return r.schema(writer, "Dropped", data.DropTables)
	case "report":
		return r.Report(writer)
	case "serve":
		return r.serve(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (r *runner) schema(writer io.Writer, verb string, apply func(data.Backend) error) error {
	err := apply(r.backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(writer, "%s allocator schema in %s\n", au.Green(verb), au.Bold(r.cfg.Database.Path))
	return nil
}

func (r *runner) Report(writer io.Writer) error {
	disks := r.alloc.MostAvailableDisks()
	conflicting := make(map[int]bool)
	for _, id := range r.alloc.GetConflictingDisks() {
		conflicting[id] = true
	}

	printer := message.NewPrinter(language.AmericanEnglish)

	fmt.Fprintf(writer, "%s %s\n\n", au.Bold("Most available disks"), au.Cyan(fmt.Sprintf("(%d shown)", len(disks))))
	fmt.Fprintln(writer, au.BgGreen(fmt.Sprintf("%8s  %-16s %10s %16s %14s %12s  %-10s  %-11s",
		"Disk", "Company", "Speed", "Free space", "Total RAM", "Avg query", "Exclusive", "Conflicting")).Bold())

	for _, id := range disks {
		disk := r.alloc.GetDiskProfile(id)
		if !disk.Valid() {
			// deleted between the ranking and the lookup
			continue
		}

		exclusive := au.Green("yes")
		if !r.alloc.IsCompanyExclusive(id) {
			exclusive = au.Brown("no")
		}

		conflict := au.Green("no")
		if conflicting[id] {
			conflict = au.Red("yes")
		}

		fmt.Fprintln(writer, printer.Sprintf("%8d  %-16s %10d %16d %14d %12.1f  %-10s  %-11s",
			disk.ID,
			disk.Company,
			disk.Speed,
			disk.FreeSpace,
			r.alloc.DiskTotalRAM(id),
			r.alloc.AverageSizeQueriesOnDisk(id),
			exclusive,
			conflict,
		))
	}

	fmt.Fprint(writer, "\n")
	return nil
}

// serve runs until SIGINT or SIGTERM arrives, ctx is cancelled or the
// listener fails, then drains in-flight requests.
func (r *runner) serve(ctx context.Context) error {
	srv := serve.NewAllocatorServer(r.cfg.Serve.Addr, r.alloc, r.logger)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	g, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})

	g.Go(func() error {
		defer close(stopped)
		return srv.Serve()
	})

	g.Go(func() error {
		select {
		case sig := <-signals:
			r.logger.Infow("received signal", "signal", sig.String())
		case <-gctx.Done():
		case <-stopped:
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (r *runner) shutdownTimeout() time.Duration {
	if r.cfg.Serve.ShutdownTimeout > 0 {
		return r.cfg.Serve.ShutdownTimeout
	}
	return 10 * time.Second
}
