package main

import (
	"log/slog"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/player"
	"github.com/alxayo/bagplay/internal/qos"
)

// stdoutPublisher logs every published payload instead of handing it to a
// real pub/sub transport; the transport itself is an external collaborator
// per spec.md §6, so this CLI demonstrates wiring against player.Publisher
// without assuming any concrete middleware.
type stdoutPublisher struct {
	log     *slog.Logger
	topic   string
	profile qos.Profile
}

func (p *stdoutPublisher) TryPublish(payload []byte) bool {
	p.log.Info("publish", "topic", p.topic, "bytes", len(payload), "qos", p.profile.Reliability+"/"+p.profile.Durability)
	return true
}

// stdoutPublisherFactory builds a player.PublisherFactory bound to log.
func stdoutPublisherFactory(log *slog.Logger) player.PublisherFactory {
	return func(topic bagio.TopicMetadata, profile qos.Profile) (player.Publisher, error) {
		return &stdoutPublisher{log: log, topic: topic.Name, profile: profile}, nil
	}
}
