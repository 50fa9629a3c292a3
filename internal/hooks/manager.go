package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Manager registers hooks per EventType and fans out TriggerEvent calls to
// every matching hook, bounded to config.Concurrency in-flight executions
// via an errgroup.Group with SetLimit — the same errgroup primitive
// internal/recorder's discovery goroutine and internal/rewrite's
// emitToAllWriters already use (there without a limit), rather than a
// bespoke channel-based worker pool. Registration reads/writes are guarded by mu; a
// lookup snapshots the matching hooks under a read lock and releases it
// before dispatching, so a slow hook never blocks a concurrent
// RegisterHook/UnregisterHook.
//
// TriggerEvent is only ever called at session- and topic-level lifecycle
// points (play started/paused, topic discovered, recording snapshot, merge
// complete — see the call sites in internal/player, internal/recorder and
// internal/rewrite); the only per-message call is the recorder's
// storage_error event after a failed write. Letting it block
// briefly when the concurrency bound is saturated is an acceptable way to
// apply backpressure rather than a risk to playback/recording throughput.
type Manager struct {
	hooks     map[EventType][]Hook
	stdioHook *StdioHook
	mu        sync.RWMutex
	eg        *errgroup.Group
	timeout   time.Duration
	logger    *slog.Logger
	config    Config
}

// NewManager creates a hook manager. config.Timeout, parsed once here,
// bounds how long Close waits for in-flight hook executions to drain; it
// defaults to 30s if empty or unparseable.
func NewManager(config Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		logger.Warn("invalid hook timeout, using default", "timeout", config.Timeout, "error", err)
		timeout = 30 * time.Second
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	eg := &errgroup.Group{}
	eg.SetLimit(concurrency)

	m := &Manager{
		hooks:   make(map[EventType][]Hook),
		logger:  logger,
		config:  config,
		eg:      eg,
		timeout: timeout,
	}
	if config.StdioFormat != "" {
		_ = m.EnableStdioOutput(config.StdioFormat)
	}
	return m
}

// RegisterHook registers a hook for the specified event type.
func (m *Manager) RegisterHook(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hooks: cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[eventType] = append(m.hooks[eventType], hook)
	m.logger.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// UnregisterHook removes a hook by ID from the specified event type.
func (m *Manager) UnregisterHook(eventType EventType, hookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	registered := m.hooks[eventType]
	for i, hook := range registered {
		if hook.ID() == hookID {
			m.hooks[eventType] = append(registered[:i], registered[i+1:]...)
			m.logger.Info("hook unregistered", "event_type", eventType, "hook_id", hookID)
			return true
		}
	}
	return false
}

// TriggerEvent dispatches event to every hook registered for its type, plus
// the stdio hook when enabled. Safe to call with a nil receiver (no-op) so
// engines need not nil-check an optional manager at every call site.
func (m *Manager) TriggerEvent(ctx context.Context, event Event) {
	if m == nil {
		return
	}

	m.mu.RLock()
	matched := make([]Hook, len(m.hooks[event.Type]))
	copy(matched, m.hooks[event.Type])
	stdio := m.stdioHook
	m.mu.RUnlock()

	if stdio != nil {
		matched = append(matched, stdio)
	}
	if len(matched) == 0 {
		return
	}

	m.logger.Debug("triggering event", "event_type", event.Type, "hook_count", len(matched), "event", event.String())
	for _, hook := range matched {
		hook := hook
		m.eg.Go(func() error {
			m.runHook(ctx, hook, event)
			return nil
		})
	}
}

func (m *Manager) runHook(ctx context.Context, hook Hook, event Event) {
	start := time.Now()
	err := hook.Execute(ctx, event)
	duration := time.Since(start)

	if err != nil {
		m.logger.Error("hook execution failed", "hook_type", hook.Type(), "hook_id", hook.ID(),
			"event_type", event.Type, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	m.logger.Debug("hook executed", "hook_type", hook.Type(), "hook_id", hook.ID(),
		"event_type", event.Type, "duration_ms", duration.Milliseconds())
}

// EnableStdioOutput enables structured output to stdout/stderr.
func (m *Manager) EnableStdioOutput(format string) error {
	if format != "json" && format != "env" {
		return fmt.Errorf("hooks: unsupported stdio format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = NewStdioHook("stdio", format)
	return nil
}

// DisableStdioOutput disables structured output.
func (m *Manager) DisableStdioOutput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = nil
}

// Stats returns a snapshot of hook registration counts.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooksByType := make(map[string]int)
	total := 0
	for eventType, registered := range m.hooks {
		hooksByType[string(eventType)] = len(registered)
		total += len(registered)
	}

	return map[string]interface{}{
		"event_types":   len(m.hooks),
		"total_hooks":   total,
		"hooks_by_type": hooksByType,
		"stdio_enabled": m.stdioHook != nil,
	}
}

// Close waits for in-flight hook executions to finish, bounded by the
// manager's configured timeout (default 30s) so a wedged shell or webhook
// hook cannot hang a session's shutdown indefinitely. This mirrors
// cmd/bagplay/main.go's runRecord, which already races the recorder's own
// Close against a forced-exit timeout rather than waiting unconditionally.
func (m *Manager) Close() error {
	done := make(chan struct{})
	go func() {
		_ = m.eg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(m.timeout):
		return fmt.Errorf("hooks: close timed out after %s waiting for in-flight hook executions", m.timeout)
	}
}
