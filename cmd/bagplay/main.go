package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/logger"
	"github.com/alxayo/bagplay/internal/metrics"
	"github.com/alxayo/bagplay/internal/player"
	"github.com/alxayo/bagplay/internal/recorder"
	"github.com/alxayo/bagplay/internal/rewrite"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: bagplay <play|record|rewrite> [flags]")
		os.Exit(2)
	}

	sub, rest := os.Args[1], os.Args[2:]
	var err error
	switch sub {
	case "play":
		err = runPlay(rest)
	case "record":
		err = runRecord(rest)
	case "rewrite":
		err = runRewrite(rest)
	case "-version", "--version", "version":
		fmt.Println(version)
		return
	default:
		fmt.Printf("unknown subcommand %q\n", sub)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// shutdownContext wires the teacher's signal-driven graceful shutdown
// pattern (cmd/rtmp-server/main.go): a context cancelled on SIGINT/SIGTERM.
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPlay(args []string) error {
	cfg, err := parsePlayFlags(args)
	if err != nil {
		return err
	}
	logger.Init()
	_ = logger.SetLevel(cfg.logLevel)
	log := logger.Logger().With("component", "cli", "subcommand", "play")

	hookMgr, err := buildHookManager(cfg.hooks, log)
	if err != nil {
		return err
	}
	defer hookMgr.Close()

	reader := bagio.NewFileReader()
	if err := reader.Open(bagio.StorageOptions{URI: cfg.input}, bagio.ConversionOptions{}); err != nil {
		return fmt.Errorf("play: open %s: %w", cfg.input, err)
	}

	m := metrics.New(nil)
	pl := player.New(reader, stdoutPublisherFactory(log), player.Config{
		Delay:                 cfg.delay,
		Loop:                  cfg.loop,
		InitialRate:           cfg.rate,
		QueueCapacity:         cfg.queueSize,
		Filter:                bagio.StorageFilter{Topics: cfg.topics},
		ClockPublishFrequency: cfg.clockFreq,
		ClockTopic:            cfg.clockTopic,
	}, hookMgr, m)

	ctx, stop := shutdownContext()
	defer stop()

	log.Info("play starting", "input", cfg.input, "rate", cfg.rate, "loop", cfg.loop)
	if err := pl.Play(ctx); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return pl.Close()
}

func runRecord(args []string) error {
	cfg, err := parseRecordFlags(args)
	if err != nil {
		return err
	}
	logger.Init()
	_ = logger.SetLevel(cfg.logLevel)
	log := logger.Logger().With("component", "cli", "subcommand", "record")

	hookMgr, err := buildHookManager(cfg.hooks, log)
	if err != nil {
		return err
	}
	defer hookMgr.Close()

	writer := bagio.NewFileWriter()
	if err := writer.Open(bagio.StorageOptions{URI: cfg.output}, bagio.ConversionOptions{}); err != nil {
		return fmt.Errorf("record: open %s: %w", cfg.output, err)
	}

	disc := newStaticDiscoverer(cfg.topics)
	m := metrics.New(nil)

	rec := recorder.New(writer, disc, recorder.Config{
		SerializationFormatIn:  cfg.formatIn,
		SerializationFormatOut: cfg.formatOut,
		Topics:                 cfg.topics,
		Regex:                  cfg.regex,
		Exclude:                cfg.exclude,
		AllByDefault:           cfg.all,
		IncludeHidden:          cfg.includeHidden,
		DiscoveryEnabled:       !cfg.noDiscovery,
		TopicPollingInterval:   cfg.pollInterval,
		SnapshotMode:           cfg.snapshot,
	}, hookMgr, m)

	ctx, stop := shutdownContext()
	defer stop()

	log.Info("record starting", "output", cfg.output, "topics", cfg.topics)
	if err := rec.Record(ctx); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := rec.Close(); err != nil {
			log.Error("recorder close error", "error", err)
		}
		close(done)
	}()
	select {
	case <-done:
		log.Info("recorder stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
	return nil
}

func runRewrite(args []string) error {
	cfg, err := parseRewriteFlags(args)
	if err != nil {
		return err
	}
	logger.Init()
	_ = logger.SetLevel(cfg.logLevel)
	log := logger.Logger().With("component", "cli", "subcommand", "rewrite")

	readers := make([]bagio.Reader, 0, len(cfg.inputs))
	for _, path := range cfg.inputs {
		r := bagio.NewFileReader()
		if err := r.Open(bagio.StorageOptions{URI: path}, bagio.ConversionOptions{}); err != nil {
			return fmt.Errorf("rewrite: open input %s: %w", path, err)
		}
		readers = append(readers, r)
	}

	writers := make([]bagio.Writer, 0, len(cfg.outputs))
	for _, path := range cfg.outputs {
		w := bagio.NewFileWriter()
		if err := w.Open(bagio.StorageOptions{URI: path}, bagio.ConversionOptions{}); err != nil {
			return fmt.Errorf("rewrite: open output %s: %w", path, err)
		}
		writers = append(writers, w)
	}

	m, err := rewrite.New(readers, writers, nil)
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	ctx, stop := shutdownContext()
	defer stop()

	n, err := m.Merge(ctx)
	if err != nil {
		return fmt.Errorf("rewrite: merge: %w", err)
	}
	log.Info("rewrite complete", "messages", n)

	for _, w := range writers {
		_ = w.Close()
	}
	for _, r := range readers {
		_ = r.Close()
	}
	return nil
}
