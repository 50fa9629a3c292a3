package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// stringSliceFlag implements flag.Value for repeatable string flags, kept
// from the teacher's cmd/rtmp-server/flags.go verbatim.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }
func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// hookFlags is the set of hook-related flags shared by every subcommand,
// mirroring the teacher's hook flag surface in cmd/rtmp-server/flags.go.
type hookFlags struct {
	scripts     []string
	webhooks    []string
	stdioFormat string
	timeout     time.Duration
	concurrency int
}

func bindHookFlags(fs *flag.FlagSet, h *hookFlags) (*stringSliceFlag, *stringSliceFlag) {
	var scripts, webhooks stringSliceFlag
	fs.Var(&scripts, "hook-script", "Hook script in format event_type=script_path (repeatable)")
	fs.Var(&webhooks, "hook-webhook", "Hook webhook in format event_type=webhook_url (repeatable)")
	fs.StringVar(&h.stdioFormat, "hook-stdio-format", "", "Enable structured stdio hook output: json|env (empty=disabled)")
	fs.DurationVar(&h.timeout, "hook-timeout", 30*time.Second, "Timeout for hook execution")
	fs.IntVar(&h.concurrency, "hook-concurrency", 10, "Maximum concurrent hook executions")
	return &scripts, &webhooks
}

type playFlags struct {
	input      string
	rate       float64
	loop       bool
	delay      time.Duration
	queueSize  int
	topics     []string
	clockFreq  float64
	clockTopic string
	logLevel   string
	hooks      hookFlags
}

func parsePlayFlags(args []string) (*playFlags, error) {
	fs := flag.NewFlagSet("bagplay play", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &playFlags{}
	var topics stringSliceFlag
	fs.StringVar(&cfg.input, "input", "", "Bag file to play (required)")
	fs.Float64Var(&cfg.rate, "rate", 1.0, "Initial playback rate multiplier")
	fs.BoolVar(&cfg.loop, "loop", false, "Loop playback from starting_time_ forever")
	fs.DurationVar(&cfg.delay, "delay", 0, "Delay before each play pass")
	fs.IntVar(&cfg.queueSize, "queue-size", 256, "Read-ahead queue capacity")
	fs.Var(&topics, "topic", "Restrict playback to this topic (repeatable; default all)")
	fs.Float64Var(&cfg.clockFreq, "clock-frequency", 0, "Clock topic publish frequency in Hz (0 disables)")
	fs.StringVar(&cfg.clockTopic, "clock-topic", "/clock", "Clock topic name")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	scripts, webhooks := bindHookFlags(fs, &cfg.hooks)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.topics = topics
	cfg.hooks.scripts = *scripts
	cfg.hooks.webhooks = *webhooks

	if cfg.input == "" {
		return nil, fmt.Errorf("play: -input is required")
	}
	if cfg.rate <= 0 {
		return nil, fmt.Errorf("play: -rate must be > 0")
	}
	return cfg, nil
}

type recordFlags struct {
	output        string
	formatIn      string
	formatOut     string
	topics        []string
	regex         string
	exclude       string
	all           bool
	includeHidden bool
	noDiscovery   bool
	pollInterval  time.Duration
	snapshot      bool
	logLevel      string
	hooks         hookFlags
}

func parseRecordFlags(args []string) (*recordFlags, error) {
	fs := flag.NewFlagSet("bagplay record", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &recordFlags{}
	var topics stringSliceFlag
	fs.StringVar(&cfg.output, "output", "", "Bag file to record into (required)")
	fs.StringVar(&cfg.formatIn, "format-in", "cdr", "Input serialization format")
	fs.StringVar(&cfg.formatOut, "format-out", "cdr", "Output serialization format")
	fs.Var(&topics, "topic", "Explicit topic to record (repeatable; default: discover all)")
	fs.StringVar(&cfg.regex, "regex", "", "Regex topic selection")
	fs.StringVar(&cfg.exclude, "exclude", "", "Regex topic exclusion")
	fs.BoolVar(&cfg.all, "all", true, "Whether an empty -regex means \"everything\"")
	fs.BoolVar(&cfg.includeHidden, "include-hidden-topics", false, "Include hidden topics in discovery")
	fs.BoolVar(&cfg.noDiscovery, "no-discovery", false, "Disable periodic topic discovery")
	fs.DurationVar(&cfg.pollInterval, "topic-polling-interval", time.Second, "Discovery polling interval")
	fs.BoolVar(&cfg.snapshot, "snapshot-mode", false, "Enable snapshot-mode recording")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	scripts, webhooks := bindHookFlags(fs, &cfg.hooks)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.topics = topics
	cfg.hooks.scripts = *scripts
	cfg.hooks.webhooks = *webhooks

	if cfg.output == "" {
		return nil, fmt.Errorf("record: -output is required")
	}
	if cfg.formatIn == "" || cfg.formatOut == "" {
		return nil, fmt.Errorf("record: -format-in/-format-out must not be empty")
	}
	return cfg, nil
}

type rewriteFlags struct {
	inputs   []string
	outputs  []string
	logLevel string
}

func parseRewriteFlags(args []string) (*rewriteFlags, error) {
	fs := flag.NewFlagSet("bagplay rewrite", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &rewriteFlags{}
	var inputs, outputs stringSliceFlag
	fs.Var(&inputs, "input", "Input bag file (repeatable, at least one required)")
	fs.Var(&outputs, "output", "Output bag file (repeatable, at least one required)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.inputs = inputs
	cfg.outputs = outputs

	if len(cfg.inputs) == 0 {
		return nil, fmt.Errorf("rewrite: at least one -input is required")
	}
	if len(cfg.outputs) == 0 {
		return nil, fmt.Errorf("rewrite: at least one -output is required")
	}
	return cfg, nil
}
