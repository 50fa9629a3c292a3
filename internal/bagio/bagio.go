// Package bagio defines the external data model and storage contracts this
// module is built around: SerializedMessage, TopicMetadata, and the
// Reader/Writer interfaces a bag storage engine must satisfy.
//
// The storage engine itself — the on-disk bag format, its indexing, its
// compression — is deliberately out of scope for this module (see the
// non-goals at the end of SPEC_FULL.md): Reader and Writer are external
// collaborators. This package also ships a minimal file-backed
// implementation (file.go) of both interfaces, but that implementation is
// explicitly test/fixture infrastructure, not the subsystem under design —
// it exists so the playback, recording, and rewrite engines have something
// real to run against.
package bagio

import "fmt"

// SerializedMessage is an immutable, opaque-payload message read from or
// written to a bag. It is shared by reference between producer and consumer
// inside the Playback Engine; callers must not mutate Data after creation.
type SerializedMessage struct {
	Topic     string
	Data      []byte
	TimeStamp int64 // nanoseconds since epoch
}

// TopicMetadata describes one topic as recorded in (or to be recorded into)
// a bag's metadata. Keyed by Name; Type is a fully-qualified message type
// identifier opaque to this subsystem.
type TopicMetadata struct {
	Name                string
	Type                string
	SerializationFormat string
	// OfferedQoSProfiles is the YAML-encoded list of QoS profiles offered by
	// publishers of this topic at record time. The grammar itself is
	// delegated to internal/qos (gopkg.in/yaml.v3); this subsystem treats it
	// as an opaque string at the data-model boundary, exactly as TopicMetadata
	// is specified.
	OfferedQoSProfiles string
}

// StorageFilter restricts a Reader to a subset of topics. An empty/nil
// Topics slice means "no filtering" (all topics pass).
type StorageFilter struct {
	Topics []string
}

// Allows reports whether topic passes this filter.
func (f StorageFilter) Allows(topic string) bool {
	if len(f.Topics) == 0 {
		return true
	}
	for _, t := range f.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// BagMetadata is the subset of a bag's recorded metadata this module reads.
type BagMetadata struct {
	StartingTime int64 // minimum time_stamp across all messages in the bag
	MessageCount int
}

// StorageOptions configures how a Reader/Writer opens its underlying bag.
// URI is the bag's location (file path, directory, connection string — the
// concrete meaning is storage-engine specific and opaque here).
type StorageOptions struct {
	URI       string
	StorageID string
}

// ConversionOptions names the serialization format a Reader/Writer should
// convert between on the fly. Empty means "no conversion" (pass through the
// format recorded in the bag / requested by the caller).
type ConversionOptions struct {
	InputSerializationFormat  string
	OutputSerializationFormat string
}

// Reader is the external bag-reading contract (spec.md §6). Calls are not
// required to be thread-safe; callers (the Playback Engine, the Rewrite
// Merger) serialize their own access, typically behind a single mutex.
type Reader interface {
	Open(opts StorageOptions, conv ConversionOptions) error
	Close() error
	HasNext() bool
	ReadNext() (*SerializedMessage, error)
	Seek(timeStamp int64) error
	Metadata() (BagMetadata, error)
	TopicsAndTypes() ([]TopicMetadata, error)
	SetFilter(StorageFilter)
}

// Writer is the external bag-writing contract (spec.md §6). Unlike Reader,
// Writer must be internally thread-safe for concurrent Write calls — the
// Recording Engine invokes it from many subscription-delivery goroutines at
// once.
type Writer interface {
	Open(opts StorageOptions, conv ConversionOptions) error
	Close() error
	CreateTopic(TopicMetadata) error
	RemoveTopic(TopicMetadata) error
	Write(*SerializedMessage) error
	// TakeSnapshot flushes the in-memory buffered window to persistent
	// storage in snapshot-mode recording. Returns false if the writer isn't
	// operating in snapshot mode.
	TakeSnapshot() (bool, error)
}

// ErrTopicNotCreated is returned by Write implementations when asked to
// write to a topic that never had CreateTopic called for it — a violation
// of the §3 invariant "the Writer has seen create_topic for every topic
// name it is ever asked to write".
type ErrTopicNotCreated struct {
	Topic string
}

func (e *ErrTopicNotCreated) Error() string {
	return fmt.Sprintf("bagio: write to topic %q without create_topic", e.Topic)
}
