package main

import (
	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/qos"
	"github.com/alxayo/bagplay/internal/recorder"
)

// staticDiscoverer reports a fixed topic catalog and never delivers
// messages. A real embedding binary replaces this with a Discoverer bound to
// its actual pub/sub middleware (spec.md §6 declares that transport an
// external collaborator); this CLI only demonstrates the wiring.
type staticDiscoverer struct {
	topics []bagio.TopicMetadata
}

func newStaticDiscoverer(names []string) *staticDiscoverer {
	topics := make([]bagio.TopicMetadata, 0, len(names))
	for _, n := range names {
		topics = append(topics, bagio.TopicMetadata{Name: n, Type: "bagplay/Opaque", SerializationFormat: "cdr"})
	}
	return &staticDiscoverer{topics: topics}
}

func (d *staticDiscoverer) TopicsAndTypes(bool) ([]bagio.TopicMetadata, error) {
	out := make([]bagio.TopicMetadata, len(d.topics))
	copy(out, d.topics)
	return out, nil
}

func (d *staticDiscoverer) LivePublisherQoS(string) ([]qos.Profile, error) { return nil, nil }

func (d *staticDiscoverer) Subscribe(bagio.TopicMetadata, qos.Profile, func(*bagio.SerializedMessage)) (recorder.Subscription, error) {
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
