package recorder

import (
	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/qos"
)

// Discoverer is the external pub/sub middleware introspection contract
// (spec.md §4.4's "ask middleware for all (topic, types) pairs"). Like
// player.Publisher, the concrete transport binding lives outside this
// module; Subscribe's callback is invoked by the transport on its own
// goroutine, concurrently across topics, exactly as §5's concurrency model
// describes "many subscription-delivery threads".
type Discoverer interface {
	// TopicsAndTypes returns every (topic, type) pair currently known to
	// the graph. includeHidden controls whether topics the middleware
	// marks hidden are included.
	TopicsAndTypes(includeHidden bool) ([]bagio.TopicMetadata, error)
	// LivePublisherQoS returns the QoS profiles currently offered by live
	// publishers of topic, for subscription_qos_for_topic and
	// warn_if_new_qos_for_subscribed_topic.
	LivePublisherQoS(topic string) ([]qos.Profile, error)
	// Subscribe creates a generic subscription at the given profile,
	// invoking onMessage for every delivered message.
	Subscribe(topic bagio.TopicMetadata, profile qos.Profile, onMessage func(*bagio.SerializedMessage)) (Subscription, error)
}

// Subscription is a live subscription handle; Close tears it down.
type Subscription interface {
	Close() error
}
