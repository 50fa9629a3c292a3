// Package qos implements QoS Negotiation (spec.md §4.6), shared between the
// Playback Engine (publisher_qos_for_topic) and the Recording Engine
// (subscription_qos_for_topic, warn_if_new_qos_for_subscribed_topic).
//
// Offered/requested profile lists travel as YAML in TopicMetadata's
// OfferedQoSProfiles field (see internal/bagio), so this package owns the
// gopkg.in/yaml.v3 marshal/unmarshal of that grammar.
package qos

import "gopkg.in/yaml.v3"

// Reliability mirrors the two-value reliability axis used across the
// examples pack's messaging-adjacent repos (best-effort delivery vs.
// guaranteed delivery).
type Reliability int

const (
	ReliabilityBestEffort Reliability = iota
	ReliabilityReliable
)

func (r Reliability) String() string {
	if r == ReliabilityReliable {
		return "RELIABLE"
	}
	return "BEST_EFFORT"
}

// Durability is the second negotiated axis: whether late-joining
// subscribers can receive previously published samples.
type Durability int

const (
	DurabilityVolatile Durability = iota
	DurabilityTransientLocal
)

func (d Durability) String() string {
	if d == DurabilityTransientLocal {
		return "TRANSIENT_LOCAL"
	}
	return "VOLATILE"
}

// Profile is one QoS profile as recorded/offered/requested.
type Profile struct {
	Reliability string `yaml:"reliability"`
	Durability  string `yaml:"durability"`
	History     int    `yaml:"history,omitempty"`
}

// Default returns the subsystem's baseline profile: RELIABLE/VOLATILE,
// matching the common default in pub/sub middleware when nothing else is
// negotiated.
func Default() Profile {
	return Profile{Reliability: ReliabilityReliable.String(), Durability: DurabilityVolatile.String()}
}

// ParseProfiles decodes a YAML-encoded list of previously-offered profiles
// as recorded in TopicMetadata.OfferedQoSProfiles. An empty string decodes
// to a nil, empty slice (caller should then fall back to Default()).
func ParseProfiles(encoded string) ([]Profile, error) {
	if encoded == "" {
		return nil, nil
	}
	var profiles []Profile
	if err := yaml.Unmarshal([]byte(encoded), &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SerializeProfiles YAML-dumps profiles for persistence in topic metadata
// (serialized_offered_qos_profiles_for_topic).
func SerializeProfiles(profiles []Profile) (string, error) {
	if len(profiles) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(profiles)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// AdaptedOffer computes a publisher-side profile compatible with every
// previously-offered profile, downgrading reliability/durability to the
// weakest common denominator where necessary (publisher_qos_for_topic).
func AdaptedOffer(previouslyOffered []Profile) Profile {
	offer := Default()
	if len(previouslyOffered) > 0 {
		offer.Durability = DurabilityTransientLocal.String()
	}
	for _, p := range previouslyOffered {
		if p.Reliability == ReliabilityBestEffort.String() {
			offer.Reliability = ReliabilityBestEffort.String()
		}
		if p.Durability == DurabilityVolatile.String() {
			offer.Durability = DurabilityVolatile.String()
		}
	}
	return offer
}

// AdaptedRequest computes a subscription-side profile compatible with every
// currently-live publisher (subscription_qos_for_topic): same weakest-common-
// denominator downgrade, viewed from the subscriber's side.
func AdaptedRequest(livePublishers []Profile) Profile {
	return AdaptedOffer(livePublishers)
}

// PublisherQoSForTopic implements publisher_qos_for_topic: an explicit
// override wins; otherwise an empty offeredQoSProfiles means "use the
// default"; otherwise adapt to the previously-offered profiles.
func PublisherQoSForTopic(override *Profile, offeredQoSProfiles string) (Profile, error) {
	if override != nil {
		return *override, nil
	}
	if offeredQoSProfiles == "" {
		return Default(), nil
	}
	previous, err := ParseProfiles(offeredQoSProfiles)
	if err != nil {
		return Profile{}, err
	}
	return AdaptedOffer(previous), nil
}

// SubscriptionQoSForTopic implements subscription_qos_for_topic: override
// wins; otherwise adapt to the live publisher profiles.
func SubscriptionQoSForTopic(override *Profile, livePublishers []Profile) Profile {
	if override != nil {
		return *override
	}
	return AdaptedRequest(livePublishers)
}

// Incompatible reports whether a publisher's offered profile will silently
// drop messages destined for a subscriber that asked for sub, per
// warn_if_new_qos_for_subscribed_topic's two rules: BEST_EFFORT offered
// against a RELIABLE request, and VOLATILE offered against a
// TRANSIENT_LOCAL request.
func Incompatible(offered, sub Profile) bool {
	if offered.Reliability == ReliabilityBestEffort.String() && sub.Reliability == ReliabilityReliable.String() {
		return true
	}
	if offered.Durability == DurabilityVolatile.String() && sub.Durability == DurabilityTransientLocal.String() {
		return true
	}
	return false
}
