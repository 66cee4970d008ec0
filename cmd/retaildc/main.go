package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"retaildc/internal/config"
	"retaildc/internal/etl"
	"retaildc/internal/metrics"
	"retaildc/internal/metrics/datadog"
	"retaildc/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "retaildc/internal/storage/all"
)

// options are the parsed command line flags.
type options struct {
	cfgPath        string
	validate       bool
	only           []string
	metricsBackend string
	pushGatewayURL string
	statsdAddr     string
	schedule       string
	watch          bool
	verbose        bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		o    options
		only string
	)
	fs := flag.NewFlagSet("retaildc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.StringVar(&only, "only", "", "comma-separated entity names to run (default: all configured)")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "none", "metrics backend: none, pushgateway or datadog (overrides env METRICS_BACKEND)")
	fs.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	fs.StringVar(&o.schedule, "schedule", "", "cron expression; when set, run on this schedule until interrupted")
	fs.BoolVar(&o.watch, "watch", false, "re-run whenever the config file changes")
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if only != "" {
		for _, n := range strings.Split(only, ",") {
			if n = strings.TrimSpace(n); n != "" {
				o.only = append(o.only, n)
			}
		}
	}
	if o.schedule != "" && o.watch {
		return options{}, errors.New("-schedule and -watch are mutually exclusive")
	}
	return o, nil
}

// main is the entry point for the retaildc binary. It loads the pipeline
// config, initializes the metrics backend, and runs every configured entity
// once, on a schedule, or on each config change.
func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fatalf("%v", err)
	}

	if err := godotenv.Load(); err != nil {
		if o.verbose {
			log.Printf("main: no .env file loaded; using process environment")
		}
	}

	if o.validate {
		os.Exit(validateOnly(o, os.Stderr))
	}

	closeMetrics := setupMetrics(o)
	defer closeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case o.schedule != "":
		err = runScheduled(ctx, o)
	case o.watch:
		err = runWatching(ctx, o)
	default:
		var s etl.Summary
		s, err = runOnce(ctx, o)
		if err == nil && len(s.Failed()) > 0 {
			closeMetrics()
			os.Exit(1)
		}
	}
	if err != nil {
		closeMetrics()
		fatalf("%v", err)
	}
}

// loadPipeline reads the config, applies -only and lints it. Warnings are
// logged; errors fail the load.
func loadPipeline(o options, w io.Writer) (config.Pipeline, error) {
	p, err := config.Load(o.cfgPath)
	if err != nil {
		return config.Pipeline{}, err
	}
	p = p.Only(o.only)
	if len(o.only) > 0 && len(p.Entities) == 0 {
		return config.Pipeline{}, fmt.Errorf("-only %s matched no configured entity", strings.Join(o.only, ","))
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("configuration is invalid: %s", o.cfgPath)
	}
	return p, nil
}

func validateOnly(o options, w io.Writer) int {
	if _, err := loadPipeline(o, w); err != nil {
		log.Printf("%v", err)
		return 1
	}
	log.Printf("Configuration is valid: %v", o.cfgPath)
	return 0
}

// runOnce loads the config afresh and processes every entity once.
func runOnce(ctx context.Context, o options) (etl.Summary, error) {
	p, err := loadPipeline(o, os.Stderr)
	if err != nil {
		return etl.Summary{}, err
	}
	if o.verbose {
		names := make([]string, len(p.Entities))
		for i, e := range p.Entities {
			names[i] = e.Name
		}
		log.Printf("pipeline: job=%s entities=%s storage=%s", p.Job, strings.Join(names, ","), p.Storage.Kind)
	}

	c, err := buildContainer(ctx, p)
	if err != nil {
		return etl.Summary{}, err
	}
	s := c.run(ctx)
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
	for _, r := range s.Failed() {
		log.Printf("main: entity %s failed: %v", r.Entity, r.Err)
	}
	return s, nil
}

// runScheduled runs on the cron schedule until ctx is done. A tick that
// arrives while a run is still in progress is skipped.
func runScheduled(ctx context.Context, o options) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(o.schedule, func() {
		log.Printf("cron: running pipeline %s", o.cfgPath)
		if _, err := runOnce(ctx, o); err != nil {
			log.Printf("cron: run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid -schedule %q: %w", o.schedule, err)
	}
	c.Start()
	log.Printf("cron: scheduled %q", o.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 500 * time.Millisecond

// runWatching runs once, then again after each change to the config file,
// until ctx is done.
func runWatching(ctx context.Context, o options) error {
	abs, err := filepath.Abs(o.cfgPath)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()
	// Watch the directory: editors often replace the file rather than write it.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}
	var timer *time.Timer
	log.Printf("watcher: watching %s", abs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if _, err := runOnce(ctx, o); err != nil {
				log.Printf("watcher: run failed: %v", err)
			}
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isConfigChange(ev, abs) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: error: %v", err)
		}
	}
}

func isConfigChange(ev fsnotify.Event, abs string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	p, err := filepath.Abs(ev.Name)
	return err == nil && p == abs
}

// setupMetrics installs the selected backend and returns a function that
// flushes and releases it. The returned function is safe to call twice.
func setupMetrics(o options) func() {
	nop := func() {}

	// Decide metrics backend: flag → env → default.
	name := o.metricsBackend
	if name == "" || name == "none" {
		if env := os.Getenv("METRICS_BACKEND"); env != "" {
			name = env
		}
	}
	job := "retaildc"

	switch name {
	case "pushgateway":
		gwURL := firstNonEmpty(o.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, name, job)
		metrics.SetBackend(b)
		return nop

	case "datadog":
		addr := firstNonEmpty(o.statsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "retail.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=%v", addr, name)
		metrics.SetBackend(b)
		closed := false
		return func() {
			if closed {
				return
			}
			closed = true
			if err := b.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		}

	case "", "none":
		if o.verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
	return nop
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
