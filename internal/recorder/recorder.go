// Package recorder implements the Recording Engine (spec.md §4.4): discovers
// topics on a configurable periodic cadence, subscribes to each, and writes
// every delivered message through a thread-safe Writer.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/errors"
	"github.com/alxayo/bagplay/internal/hooks"
	"github.com/alxayo/bagplay/internal/logger"
	"github.com/alxayo/bagplay/internal/metrics"
	"github.com/alxayo/bagplay/internal/qos"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config configures one recording session.
type Config struct {
	SerializationFormatIn  string
	SerializationFormatOut string
	// Topics, if non-empty, restricts discovery to this explicit name list
	// (expanded/intersected per requested_or_available_topics step 4).
	Topics []string
	// Regex/Exclude apply regex topic selection (step 5). AllByDefault
	// controls whether an empty Regex means "everything" (true) or
	// "nothing" (false), mirroring the `all` flag.
	Regex        string
	Exclude      string
	AllByDefault bool
	// IncludeHidden includes topics the middleware marks hidden.
	IncludeHidden bool
	// DiscoveryEnabled spawns the periodic topics_discovery task.
	DiscoveryEnabled     bool
	TopicPollingInterval time.Duration
	// SnapshotMode enables take_snapshot binding for an external snapshot
	// service; the Recorder merely exposes TakeSnapshot(), the service
	// itself (an RPC endpoint, a timer) is an external collaborator.
	SnapshotMode bool
	QoSOverrides map[string]qos.Profile
}

func (c *Config) applyDefaults() {
	if c.TopicPollingInterval <= 0 {
		c.TopicPollingInterval = time.Second
	}
}

// Recorder drives one recording session (spec.md §4.4).
type Recorder struct {
	cfg        Config
	writer     bagio.Writer
	discoverer Discoverer

	subMu         sync.RWMutex
	subscriptions map[string]Subscription
	topicMeta     map[string]bagio.TopicMetadata

	unknownMu    sync.Mutex
	unknownTypes map[string]bool

	warnedMu sync.Mutex
	warned   map[string]bool

	stopDiscovery atomic.Bool
	eg            *errgroup.Group

	sessionID string
	log       *slog.Logger
	hookMgr   *hooks.Manager
	metrics   *metrics.Registry
	ctx       context.Context
}

// New creates a Recorder writing through writer, discovering topics through
// discoverer.
func New(writer bagio.Writer, discoverer Discoverer, cfg Config, hookMgr *hooks.Manager, m *metrics.Registry) *Recorder {
	cfg.applyDefaults()
	r := &Recorder{
		cfg:           cfg,
		writer:        writer,
		discoverer:    discoverer,
		subscriptions: make(map[string]Subscription),
		topicMeta:     make(map[string]bagio.TopicMetadata),
		unknownTypes:  make(map[string]bool),
		warned:        make(map[string]bool),
		sessionID:     uuid.NewString(),
		hookMgr:       hookMgr,
		metrics:       m,
		ctx:           context.Background(),
	}
	r.log = logger.WithSession(logger.Logger(), r.sessionID, "recorder")
	return r
}

// Record implements record() (spec.md §4.4): opens the writer, subscribes to
// the initial topic set, and spawns discovery if enabled.
func (r *Recorder) Record(ctx context.Context) error {
	r.ctx = ctx
	if r.cfg.SerializationFormatIn == "" || r.cfg.SerializationFormatOut == "" {
		return errors.NewConfigError("record.open", fmt.Errorf("rmw_serialization_format must not be empty"))
	}

	if err := r.writer.Open(bagio.StorageOptions{}, bagio.ConversionOptions{
		InputSerializationFormat:  r.cfg.SerializationFormatIn,
		OutputSerializationFormat: r.cfg.SerializationFormatOut,
	}); err != nil {
		return errors.NewStorageError("record.open", err)
	}

	wanted, err := r.requestedOrAvailableTopics()
	if err != nil {
		return errors.NewStorageError("record.discover", err)
	}
	for _, t := range wanted {
		if err := r.subscribeTopic(t); err != nil {
			r.log.Warn("failed to subscribe topic", "topic", t.Name, "error", err)
		}
	}

	if r.cfg.DiscoveryEnabled {
		eg, egCtx := errgroup.WithContext(ctx)
		r.eg = eg
		eg.Go(func() error {
			r.topicsDiscovery(egCtx)
			return nil
		})
	}
	return nil
}

// topicsDiscovery implements the periodic discovery task.
func (r *Recorder) topicsDiscovery(ctx context.Context) {
	for {
		if r.stopDiscovery.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		wanted, err := r.requestedOrAvailableTopics()
		if err != nil {
			r.log.Warn("discovery: failed to list topics", "error", err)
		} else {
			for _, t := range wanted {
				r.warnIfNewQoSForSubscribedTopic(t)
			}
			for _, t := range r.missing(wanted) {
				if err := r.subscribeTopic(t); err != nil {
					r.log.Warn("failed to subscribe topic", "topic", t.Name, "error", err)
				}
			}
			if len(r.cfg.Topics) > 0 && r.subscriptionCount() == len(r.cfg.Topics) {
				r.log.Info("discovery complete", "subscriptions", r.subscriptionCount())
				r.emitEvent(hooks.EventDiscoveryComplete, "")
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.TopicPollingInterval):
		}
	}
}

// requestedOrAvailableTopics implements requested_or_available_topics().
func (r *Recorder) requestedOrAvailableTopics() ([]bagio.TopicMetadata, error) {
	all, err := r.discoverer.TopicsAndTypes(r.cfg.IncludeHidden)
	if err != nil {
		return nil, err
	}

	typeCount := make(map[string]int, len(all))
	for _, t := range all {
		typeCount[t.Name]++
	}

	byName := make(map[string]bagio.TopicMetadata, len(all))
	for _, t := range all {
		if typeCount[t.Name] > 1 {
			r.log.Warn("topic offered with more than one type, dropping", "topic", t.Name)
			continue
		}
		if t.Type == "" {
			r.warnUnknownTypeOnce(t.Name)
			continue
		}
		byName[t.Name] = t
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}

	if len(r.cfg.Topics) > 0 {
		names = intersect(names, r.cfg.Topics)
	}

	if r.cfg.Regex != "" || r.cfg.Exclude != "" {
		names, err = r.applyRegexSelection(names)
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(names)
	result := make([]bagio.TopicMetadata, 0, len(names))
	for _, n := range names {
		result = append(result, byName[n])
	}
	return result, nil
}

func (r *Recorder) applyRegexSelection(names []string) ([]string, error) {
	var include, exclude *regexp.Regexp
	var err error
	if r.cfg.Regex != "" {
		if include, err = regexp.Compile(r.cfg.Regex); err != nil {
			return nil, fmt.Errorf("recorder: invalid regex: %w", err)
		}
	}
	if r.cfg.Exclude != "" {
		if exclude, err = regexp.Compile(r.cfg.Exclude); err != nil {
			return nil, fmt.Errorf("recorder: invalid exclude regex: %w", err)
		}
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		matched := r.cfg.AllByDefault
		if include != nil {
			matched = include.MatchString(n)
		}
		if matched && exclude != nil && exclude.MatchString(n) {
			matched = false
		}
		if matched {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *Recorder) warnUnknownTypeOnce(topic string) {
	r.unknownMu.Lock()
	defer r.unknownMu.Unlock()
	if r.unknownTypes[topic] {
		return
	}
	r.unknownTypes[topic] = true
	r.log.Warn("topic type could not be loaded, dropping", "topic", topic)
	r.emitEvent(hooks.EventUnknownMessageType, topic)
}

// subscribeTopic implements subscribe_topic(topic): create_topic on the
// writer strictly before the subscription exists, because messages may
// start arriving the instant Subscribe returns.
func (r *Recorder) subscribeTopic(topic bagio.TopicMetadata) error {
	if r.hasSubscription(topic.Name) {
		return nil
	}

	if err := r.writer.CreateTopic(topic); err != nil {
		return errors.NewTopicError(topic.Name, "create_topic", err)
	}

	profile := r.subscriptionQoSFor(topic.Name)
	sub, err := r.discoverer.Subscribe(topic, profile, func(msg *bagio.SerializedMessage) {
		r.onMessage(topic.Name, msg)
	})
	if err != nil {
		_ = r.writer.RemoveTopic(topic)
		r.emitEvent(hooks.EventSubscriptionFailed, topic.Name)
		return errors.NewTopicError(topic.Name, "subscribe", err)
	}

	r.subMu.Lock()
	r.subscriptions[topic.Name] = sub
	r.topicMeta[topic.Name] = topic
	count := len(r.subscriptions)
	r.subMu.Unlock()

	if r.metrics != nil {
		r.metrics.Subscriptions.Set(float64(count))
	}
	r.emitEvent(hooks.EventTopicDiscovered, topic.Name)
	return nil
}

// onMessage is the subscription callback: writer.write(msg, topic.name,
// topic.type, wall_clock.now()). The wall-clock stamp is only applied when
// the transport hasn't already stamped the message (TimeStamp == 0).
func (r *Recorder) onMessage(topic string, msg *bagio.SerializedMessage) {
	if msg.TimeStamp == 0 {
		msg.TimeStamp = time.Now().UnixNano()
	}
	if err := r.writer.Write(msg); err != nil {
		r.log.Error("write failed", "topic", topic, "error", err)
		r.emitEvent(hooks.EventStorageError, topic)
		return
	}
	if r.metrics != nil {
		r.metrics.MessagesWritten.WithLabelValues(topic).Inc()
	}
}

// warnIfNewQoSForSubscribedTopic implements the eponymous routine: first
// incompatibility found records the warning; never warns twice per topic.
func (r *Recorder) warnIfNewQoSForSubscribedTopic(topic bagio.TopicMetadata) {
	if !r.hasSubscription(topic.Name) || r.alreadyWarned(topic.Name) {
		return
	}

	live, err := r.discoverer.LivePublisherQoS(topic.Name)
	if err != nil || len(live) == 0 {
		return
	}

	sub := r.subscriptionQoSFor(topic.Name)
	for _, offered := range live {
		if qos.Incompatible(offered, sub) {
			r.markWarned(topic.Name)
			r.log.Warn("QoS incompatible with subscription, messages will not be recorded", "topic", topic.Name)
			if r.metrics != nil {
				r.metrics.QoSIncompatibility.WithLabelValues(topic.Name).Inc()
			}
			r.emitEvent(hooks.EventQoSIncompatibility, topic.Name)
			return
		}
	}
}

func (r *Recorder) subscriptionQoSFor(name string) qos.Profile {
	if override, ok := r.cfg.QoSOverrides[name]; ok {
		return qos.SubscriptionQoSForTopic(&override, nil)
	}
	live, _ := r.discoverer.LivePublisherQoS(name)
	return qos.SubscriptionQoSForTopic(nil, live)
}

func (r *Recorder) hasSubscription(name string) bool {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	_, ok := r.subscriptions[name]
	return ok
}

func (r *Recorder) subscriptionCount() int {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	return len(r.subscriptions)
}

func (r *Recorder) missing(wanted []bagio.TopicMetadata) []bagio.TopicMetadata {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	out := make([]bagio.TopicMetadata, 0, len(wanted))
	for _, t := range wanted {
		if _, ok := r.subscriptions[t.Name]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Recorder) alreadyWarned(name string) bool {
	r.warnedMu.Lock()
	defer r.warnedMu.Unlock()
	return r.warned[name]
}

func (r *Recorder) markWarned(name string) {
	r.warnedMu.Lock()
	defer r.warnedMu.Unlock()
	r.warned[name] = true
}

// TakeSnapshot exposes writer.take_snapshot() for an external snapshot
// service to call when SnapshotMode is enabled.
func (r *Recorder) TakeSnapshot() (bool, error) {
	ok, err := r.writer.TakeSnapshot()
	if ok {
		r.emitEvent(hooks.EventRecordingSnapshot, "")
	}
	return ok, err
}

func (r *Recorder) emitEvent(t hooks.EventType, topic string) {
	if r.hookMgr == nil {
		return
	}
	ev := hooks.NewEvent(t).WithSession(r.sessionID)
	if topic != "" {
		ev = ev.WithTopic(topic)
	}
	r.hookMgr.TriggerEvent(r.ctx, *ev)
}

// Close implements destruction (spec.md §4.4): stop discovery, join it, drop
// all subscriptions, close the writer.
func (r *Recorder) Close() error {
	r.stopDiscovery.Store(true)
	if r.eg != nil {
		_ = r.eg.Wait()
	}

	r.subMu.Lock()
	for name, sub := range r.subscriptions {
		_ = sub.Close()
		delete(r.subscriptions, name)
		delete(r.topicMeta, name)
	}
	r.subMu.Unlock()

	return r.writer.Close()
}

func intersect(names, explicit []string) []string {
	want := make(map[string]bool, len(explicit))
	for _, n := range explicit {
		want[n] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if want[n] {
			out = append(out, n)
		}
	}
	return out
}
