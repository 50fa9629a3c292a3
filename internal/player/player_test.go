package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/qos"
	"github.com/stretchr/testify/require"
)

// fakeReader is an in-memory bagio.Reader over a fixed message slice and a
// fixed topic catalog, used to exercise the Playback Engine without the
// file-backed fixture's I/O.
type fakeReader struct {
	mu       sync.Mutex
	topics   []bagio.TopicMetadata
	messages []bagio.SerializedMessage
	cursor   int
	filter   bagio.StorageFilter
	starting int64
}

func newFakeReader(topics []bagio.TopicMetadata, messages []bagio.SerializedMessage) *fakeReader {
	starting := int64(0)
	if len(messages) > 0 {
		starting = messages[0].TimeStamp
	}
	return &fakeReader{topics: topics, messages: messages, starting: starting}
}

func (r *fakeReader) Open(bagio.StorageOptions, bagio.ConversionOptions) error { return nil }
func (r *fakeReader) Close() error                                            { return nil }

func (r *fakeReader) HasNext() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := r.cursor; i < len(r.messages); i++ {
		if r.filter.Allows(r.messages[i].Topic) {
			return true
		}
	}
	return false
}

func (r *fakeReader) ReadNext() (*bagio.SerializedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.cursor < len(r.messages) {
		m := r.messages[r.cursor]
		r.cursor++
		if r.filter.Allows(m.Topic) {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("fakeReader: no more messages")
}

func (r *fakeReader) Seek(t int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.messages {
		if m.TimeStamp >= t {
			r.cursor = i
			return nil
		}
	}
	r.cursor = len(r.messages)
	return nil
}

func (r *fakeReader) Metadata() (bagio.BagMetadata, error) {
	return bagio.BagMetadata{StartingTime: r.starting, MessageCount: len(r.messages)}, nil
}

func (r *fakeReader) TopicsAndTypes() ([]bagio.TopicMetadata, error) {
	return r.topics, nil
}

func (r *fakeReader) SetFilter(f bagio.StorageFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
}

// fakePublisher records every payload it receives.
type fakePublisher struct {
	mu       sync.Mutex
	received [][]byte
}

func (p *fakePublisher) TryPublish(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, payload)
	return true
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func newTestFactory() (PublisherFactory, func(topic string) *fakePublisher) {
	publishers := make(map[string]*fakePublisher)
	var mu sync.Mutex
	factory := func(topic bagio.TopicMetadata, _ qos.Profile) (Publisher, error) {
		mu.Lock()
		defer mu.Unlock()
		pub := &fakePublisher{}
		publishers[topic.Name] = pub
		return pub, nil
	}
	lookup := func(topic string) *fakePublisher {
		mu.Lock()
		defer mu.Unlock()
		return publishers[topic]
	}
	return factory, lookup
}

func twoTopicBag() *fakeReader {
	topics := []bagio.TopicMetadata{{Name: "/a"}, {Name: "/b"}}
	messages := []bagio.SerializedMessage{
		{Topic: "/a", Data: []byte("a1"), TimeStamp: 100},
		{Topic: "/b", Data: []byte("b1"), TimeStamp: 150},
		{Topic: "/a", Data: []byte("a2"), TimeStamp: 200},
	}
	return newFakeReader(topics, messages)
}

func TestTwoTopicOrderedReplay(t *testing.T) {
	reader := twoTopicBag()
	factory, lookup := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pl.Play(ctx))

	require.Equal(t, 2, lookup("/a").count())
	require.Equal(t, 1, lookup("/b").count())
}

func TestFilterRestrictsPublishedTopics(t *testing.T) {
	reader := twoTopicBag()
	factory, lookup := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8, Filter: bagio.StorageFilter{Topics: []string{"/a"}}}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pl.Play(ctx))

	require.Equal(t, 2, lookup("/a").count())
	require.Nil(t, lookup("/b"))
}

func TestPlayNextWhilePaused(t *testing.T) {
	topics := []bagio.TopicMetadata{{Name: "/a"}}
	messages := []bagio.SerializedMessage{
		{Topic: "/a", Data: []byte("m1"), TimeStamp: 10},
		{Topic: "/a", Data: []byte("m2"), TimeStamp: 20},
		{Topic: "/a", Data: []byte("m3"), TimeStamp: 30},
	}
	reader := newFakeReader(topics, messages)
	factory, lookup := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8}, nil, nil)
	pl.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = pl.Play(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pl.IsReadyToPlay() }, time.Second, time.Millisecond)

	require.True(t, pl.PlayNext())
	require.True(t, pl.PlayNext())
	require.True(t, pl.PlayNext())
	require.False(t, pl.PlayNext())

	require.Equal(t, 3, lookup("/a").count())

	pl.Resume()
	cancel()
	<-done
}

func TestSeekJumpsToTargetMessage(t *testing.T) {
	topics := []bagio.TopicMetadata{{Name: "/a"}}
	messages := make([]bagio.SerializedMessage, 0, 5)
	for _, ts := range []int64{10, 20, 30, 40, 50} {
		messages = append(messages, bagio.SerializedMessage{Topic: "/a", Data: []byte("x"), TimeStamp: ts})
	}
	reader := newFakeReader(topics, messages)
	factory, lookup := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8}, nil, nil)
	pl.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = pl.Play(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pl.IsReadyToPlay() }, time.Second, time.Millisecond)

	require.NoError(t, pl.Seek(25))
	pl.Resume()

	require.Eventually(t, func() bool { return lookup("/a").count() >= 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestRateChangeAcceptedMidStream(t *testing.T) {
	reader := twoTopicBag()
	factory, _ := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = pl.Play(ctx)
		close(done)
	}()

	require.True(t, pl.SetRate(2.0))
	require.Equal(t, 2.0, pl.GetRate())
	require.False(t, pl.SetRate(0))

	<-done
}

func TestDispatcherRoutesByName(t *testing.T) {
	reader := twoTopicBag()
	factory, _ := newTestFactory()
	pl := New(reader, factory, Config{QueueCapacity: 8}, nil, nil)
	d := NewDispatcher(pl)

	resp, err := d.Dispatch("set_rate", Request{Rate: 1.5})
	require.NoError(t, err)
	require.True(t, resp.Bool)

	resp, err = d.Dispatch("get_rate", Request{})
	require.NoError(t, err)
	require.Equal(t, 1.5, resp.Float64)

	_, err = d.Dispatch("nonexistent", Request{})
	require.Error(t, err)
}
