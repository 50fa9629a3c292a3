package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StdioHook writes event data to stdout/stderr in a structured format.
type StdioHook struct {
	id     string
	format string // "json" or "env"
	output *os.File
}

// NewStdioHook creates a stdio hook. Output defaults to stderr so it doesn't
// mix with any other process output on stdout.
func NewStdioHook(id, format string) *StdioHook {
	return &StdioHook{id: id, format: format, output: os.Stderr}
}

// SetOutput overrides the output destination.
func (h *StdioHook) SetOutput(output *os.File) *StdioHook {
	h.output = output
	return h
}

func (h *StdioHook) Execute(ctx context.Context, event Event) error {
	switch h.format {
	case "json":
		return h.outputJSON(event)
	case "env":
		return h.outputEnv(event)
	default:
		return fmt.Errorf("stdio hook %s: unsupported format: %s", h.id, h.format)
	}
}

func (h *StdioHook) Type() string { return "stdio" }
func (h *StdioHook) ID() string   { return h.id }

func (h *StdioHook) outputJSON(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stdio hook %s: marshal: %w", h.id, err)
	}
	_, err = fmt.Fprintf(h.output, "BAGPLAY_EVENT: %s\n", string(data))
	return err
}

func (h *StdioHook) outputEnv(event Event) error {
	lines := []string{
		"# bagplay event: " + string(event.Type),
		fmt.Sprintf("BAGPLAY_EVENT_TYPE=%s", event.Type),
		fmt.Sprintf("BAGPLAY_TIMESTAMP=%d", event.Timestamp),
	}
	if event.SessionID != "" {
		lines = append(lines, "BAGPLAY_SESSION_ID="+event.SessionID)
	}
	if event.Topic != "" {
		lines = append(lines, "BAGPLAY_TOPIC="+event.Topic)
	}
	for key, value := range event.Data {
		lines = append(lines, "BAGPLAY_"+strings.ToUpper(key)+fmt.Sprintf("=%v", value))
	}
	lines = append(lines, "")

	for _, line := range lines {
		if _, err := fmt.Fprintln(h.output, line); err != nil {
			return fmt.Errorf("stdio hook %s: write: %w", h.id, err)
		}
	}
	return nil
}
