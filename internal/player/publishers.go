package player

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/qos"
)

// Publisher is the external collaborator a generic topic publisher must
// satisfy. Like bagio.Reader/Writer, the concrete transport binding lives
// outside this module; TryPublish mirrors the teacher's TrySendMessage
// non-blocking backpressure path (server/registry.go) rather than assuming
// publish can never block.
type Publisher interface {
	TryPublish(payload []byte) bool
}

// PublisherFactory creates a Publisher bound to topic with the given
// negotiated QoS profile. Returning an error means the topic cannot be
// published (e.g. unknown message type); prepare_publishers logs and skips.
type PublisherFactory func(topic bagio.TopicMetadata, profile qos.Profile) (Publisher, error)

// publisherMap guards a topic-name-keyed set of live publishers. The
// CreateIfAbsent double-checked-locking shape mirrors server/registry.go's
// Registry.CreateStream: a fast RLock path for the common "already present"
// case, then a write-locked re-check before inserting.
type publisherMap struct {
	mu      sync.RWMutex
	byTopic map[string]Publisher
}

func newPublisherMap() *publisherMap {
	return &publisherMap{byTopic: make(map[string]Publisher)}
}

func (m *publisherMap) has(topic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byTopic[topic]
	return ok
}

func (m *publisherMap) createIfAbsent(topic string, factory func() (Publisher, error)) error {
	if m.has(topic) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTopic[topic]; ok {
		return nil
	}
	pub, err := factory()
	if err != nil {
		return err
	}
	m.byTopic[topic] = pub
	return nil
}

// lookup snapshots under read lock, matching the broadcast pattern's
// "never hold the lock during I/O" discipline.
func (m *publisherMap) lookup(topic string) Publisher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byTopic[topic]
}

func (m *publisherMap) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byTopic)
}

// preparePublishers implements prepare_publishers (spec.md §4.3): apply the
// topic filter to the Reader, optionally wire a clock-topic publisher, and
// create a generic publisher for every remaining catalog topic.
func (p *Player) preparePublishers() error {
	p.reader.SetFilter(p.cfg.Filter)

	if p.cfg.ClockPublishFrequency > 0 && p.clockPub == nil {
		if err := p.startClockPublisher(); err != nil {
			p.log.Warn("failed to start clock publisher", "error", err)
		}
	}

	topics, err := p.reader.TopicsAndTypes()
	if err != nil {
		return fmt.Errorf("player: get_all_topics_and_types: %w", err)
	}

	for _, topic := range topics {
		if p.publishers.has(topic.Name) {
			continue
		}
		if !p.cfg.Filter.Allows(topic.Name) {
			continue
		}
		t := topic
		err := p.publishers.createIfAbsent(t.Name, func() (Publisher, error) {
			var override *qos.Profile
			if o, ok := p.cfg.QoSOverrides[t.Name]; ok {
				override = &o
			}
			profile, err := qos.PublisherQoSForTopic(override, t.OfferedQoSProfiles)
			if err != nil {
				return nil, err
			}
			return p.factory(t, profile)
		})
		if err != nil {
			p.log.Warn("failed to create publisher, skipping topic", "topic", t.Name, "error", err)
			p.emitTopicError(t.Name, err)
			continue
		}
	}
	logPublisherCount(p.log, p.publishers.size())
	return nil
}

func (p *Player) emitTopicError(topic string, err error) {
	if p.hookMgr == nil {
		return
	}
	ev := eventPublishFailureFor(p.sessionID, topic, err)
	p.hookMgr.TriggerEvent(p.ctx, ev)
}

func logPublisherCount(log *slog.Logger, n int) {
	log.Info("publishers prepared", "count", n)
}

func clockTopicMetadata(topic string) bagio.TopicMetadata {
	return bagio.TopicMetadata{Name: topic, Type: "bagplay/Clock", SerializationFormat: "raw"}
}

func clockTopicQoS() qos.Profile {
	return qos.Default()
}
