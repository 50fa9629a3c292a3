// Package hooks implements the event/notification surface this module
// carries as a supplemented feature: the Player, Recorder and Rewrite
// Merger each report their lifecycle and per-topic decisions as Events, and
// operators can attach stdio/shell/webhook hooks the same way the teacher's
// RTMP server lets operators observe connection and stream lifecycle.
package hooks

import (
	"time"

	"github.com/google/uuid"
)

// EventType names one kind of occurrence across the three engines.
type EventType string

const (
	// Playback Engine events.
	EventPlayStarted    EventType = "play_started"
	EventPlayStopped    EventType = "play_stopped"
	EventPaused         EventType = "paused"
	EventResumed        EventType = "resumed"
	EventSought         EventType = "sought"
	EventRateChanged    EventType = "rate_changed"
	EventQueueStarved   EventType = "queue_starved"
	EventPublishFailure EventType = "publish_failure"

	// Recording Engine events.
	EventTopicDiscovered    EventType = "topic_discovered"
	EventSubscriptionFailed EventType = "subscription_failed"
	EventRecordingSnapshot  EventType = "recording_snapshot"
	EventDiscoveryComplete  EventType = "discovery_complete"
	EventUnknownMessageType EventType = "unknown_message_type"

	// Shared / Rewrite Merger events.
	EventQoSIncompatibility EventType = "qos_incompatibility"
	EventMergeComplete      EventType = "merge_complete"
	EventStorageError       EventType = "storage_error"
)

// Event is a single occurrence reported by one of the three engines. Unlike
// the teacher's ConnID/StreamKey pair, this module's identity axis is the
// session (a play pass, a recording run, a rewrite run) plus the topic the
// occurrence concerns, if any.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	Topic     string                 `json:"topic,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates a new event stamped with a fresh correlation ID and the
// current wall time.
func NewEvent(eventType EventType) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Data:      make(map[string]interface{}),
	}
}

// WithSession sets the reporting engine session's correlation ID.
func (e *Event) WithSession(sessionID string) *Event {
	e.SessionID = sessionID
	return e
}

// WithTopic sets the topic the event concerns.
func (e *Event) WithTopic(topic string) *Event {
	e.Topic = topic
	return e
}

// WithData adds a data field to the event.
func (e *Event) WithData(key string, value interface{}) *Event {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// String returns a human-readable representation used in log lines.
func (e *Event) String() string {
	if e.Topic != "" {
		return string(e.Type) + ":" + e.Topic
	}
	if e.SessionID != "" {
		return string(e.Type) + ":" + e.SessionID
	}
	return string(e.Type)
}
