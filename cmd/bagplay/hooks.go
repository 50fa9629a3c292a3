package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alxayo/bagplay/internal/hooks"
)

// buildHookManager wires -hook-script/-hook-webhook/-hook-stdio-format flags
// into a hooks.Manager, mirroring the teacher's initializeHookManager /
// registerShellHooks / registerWebhookHooks in server/server.go.
func buildHookManager(h hookFlags, log *slog.Logger) (*hooks.Manager, error) {
	cfg := hooks.Config{
		Timeout:     h.timeout.String(),
		Concurrency: h.concurrency,
		StdioFormat: h.stdioFormat,
	}
	mgr := hooks.NewManager(cfg, log)

	for i, script := range h.scripts {
		eventType, path, err := splitAssignment("hook-script", script)
		if err != nil {
			return nil, err
		}
		sh := hooks.NewShellHook(fmt.Sprintf("shell_%d", i), path, h.timeout)
		if err := mgr.RegisterHook(eventType, sh); err != nil {
			return nil, fmt.Errorf("register shell hook %s: %w", script, err)
		}
	}

	for i, webhook := range h.webhooks {
		eventType, url, err := splitAssignment("hook-webhook", webhook)
		if err != nil {
			return nil, err
		}
		wh := hooks.NewWebhookHook(fmt.Sprintf("webhook_%d", i), url, h.timeout)
		if err := mgr.RegisterHook(eventType, wh); err != nil {
			return nil, fmt.Errorf("register webhook hook %s: %w", webhook, err)
		}
	}

	return mgr, nil
}

func splitAssignment(flagName, assignment string) (hooks.EventType, string, error) {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid -%s %q, expected event_type=value", flagName, assignment)
	}
	return hooks.EventType(parts[0]), parts[1], nil
}
