package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEvent(t *testing.T) {
	event := NewEvent(EventTopicDiscovered).
		WithSession("run-1").
		WithTopic("/a").
		WithData("publisher_count", 3)

	require.Equal(t, EventTopicDiscovered, event.Type)
	require.Equal(t, "run-1", event.SessionID)
	require.Equal(t, "/a", event.Topic)
	require.Equal(t, 3, event.Data["publisher_count"])
	require.NoError(t, uuid.Validate(event.ID))
	require.Equal(t, "topic_discovered:/a", event.String())
}

func TestShellHook(t *testing.T) {
	hook := NewShellHook("test-hook", "/bin/echo", 10*time.Second)
	require.Equal(t, "shell", hook.Type())
	require.Equal(t, "test-hook", hook.ID())

	custom := NewShellHookWithCommand("custom", "/bin/true", []string{}, 5*time.Second)
	require.Equal(t, "/bin/true", custom.command)
}

func TestManagerRegisterTriggerUnregister(t *testing.T) {
	manager := NewManager(DefaultConfig(), nil)
	defer manager.Close()

	hook := NewShellHook("test", "/bin/true", 10*time.Second)
	require.NoError(t, manager.RegisterHook(EventTopicDiscovered, hook))

	stats := manager.Stats()
	require.Equal(t, 1, stats["total_hooks"])

	require.True(t, manager.UnregisterHook(EventTopicDiscovered, "test"))
	require.False(t, manager.UnregisterHook(EventTopicDiscovered, "test"))

	event := NewEvent(EventTopicDiscovered)
	manager.TriggerEvent(context.Background(), *event) // should not panic with no hooks
}

func TestManagerRejectsNilHook(t *testing.T) {
	manager := NewManager(DefaultConfig(), nil)
	defer manager.Close()
	require.Error(t, manager.RegisterHook(EventPaused, nil))
}

func TestNilManagerTriggerEventNoop(t *testing.T) {
	var manager *Manager
	manager.TriggerEvent(context.Background(), *NewEvent(EventPaused))
}

// blockingHook never returns from Execute until release is closed, used to
// exercise Manager.Close's timeout bound.
type blockingHook struct {
	id      string
	release chan struct{}
}

func (h *blockingHook) Execute(ctx context.Context, event Event) error {
	<-h.release
	return nil
}
func (h *blockingHook) Type() string { return "blocking" }
func (h *blockingHook) ID() string   { return h.id }

func TestManagerCloseTimesOutOnWedgedHook(t *testing.T) {
	manager := NewManager(Config{Timeout: "20ms", Concurrency: 10}, nil)
	hook := &blockingHook{id: "wedged", release: make(chan struct{})}
	defer close(hook.release)

	require.NoError(t, manager.RegisterHook(EventPaused, hook))
	manager.TriggerEvent(context.Background(), *NewEvent(EventPaused))

	require.Eventually(t, func() bool {
		return manager.Close() != nil
	}, time.Second, 5*time.Millisecond)
}

func TestStdioHook(t *testing.T) {
	hook := NewStdioHook("stdio-test", "json")
	require.Equal(t, "stdio", hook.Type())
	require.Equal(t, "stdio-test", hook.ID())
	require.Equal(t, "json", hook.format)
}

func TestWebhookHook(t *testing.T) {
	hook := NewWebhookHook("webhook-test", "https://example.com/webhook", 30*time.Second)
	require.Equal(t, "webhook", hook.Type())
	require.Equal(t, "webhook-test", hook.ID())
	require.Equal(t, "https://example.com/webhook", hook.url)

	hook.AddHeader("Authorization", "Bearer token")
	require.Equal(t, "Bearer token", hook.headers["Authorization"])
}
