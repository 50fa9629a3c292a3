package rewrite

import (
	"context"
	"sync"
	"testing"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/stretchr/testify/require"
)

// fakeReader is a fixed in-memory bagio.Reader with no filtering support
// (rewrite never calls SetFilter).
type fakeReader struct {
	topics   []bagio.TopicMetadata
	messages []bagio.SerializedMessage
	cursor   int
}

func newFakeReader(topic string, timestamps []int64) *fakeReader {
	msgs := make([]bagio.SerializedMessage, 0, len(timestamps))
	for _, ts := range timestamps {
		msgs = append(msgs, bagio.SerializedMessage{Topic: topic, Data: []byte(topic), TimeStamp: ts})
	}
	return &fakeReader{topics: []bagio.TopicMetadata{{Name: topic, Type: "std_msgs/String"}}, messages: msgs}
}

func (r *fakeReader) Open(bagio.StorageOptions, bagio.ConversionOptions) error { return nil }
func (r *fakeReader) Close() error                                            { return nil }
func (r *fakeReader) HasNext() bool                                           { return r.cursor < len(r.messages) }
func (r *fakeReader) ReadNext() (*bagio.SerializedMessage, error) {
	m := r.messages[r.cursor]
	r.cursor++
	return &m, nil
}
func (r *fakeReader) Seek(int64) error { return nil }
func (r *fakeReader) Metadata() (bagio.BagMetadata, error) {
	return bagio.BagMetadata{MessageCount: len(r.messages)}, nil
}
func (r *fakeReader) TopicsAndTypes() ([]bagio.TopicMetadata, error) { return r.topics, nil }
func (r *fakeReader) SetFilter(bagio.StorageFilter)                 {}

// fakeWriter records every written message, thread-safe for the merger's
// parallel per-writer fan-out.
type fakeWriter struct {
	mu      sync.Mutex
	topics  map[string]bagio.TopicMetadata
	written []bagio.SerializedMessage
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{topics: make(map[string]bagio.TopicMetadata)}
}

func (w *fakeWriter) Open(bagio.StorageOptions, bagio.ConversionOptions) error { return nil }
func (w *fakeWriter) Close() error                                            { return nil }
func (w *fakeWriter) CreateTopic(t bagio.TopicMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.topics[t.Name] = t
	return nil
}
func (w *fakeWriter) RemoveTopic(t bagio.TopicMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.topics, t.Name)
	return nil
}
func (w *fakeWriter) Write(msg *bagio.SerializedMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.topics[msg.Topic]; !ok {
		return &bagio.ErrTopicNotCreated{Topic: msg.Topic}
	}
	w.written = append(w.written, *msg)
	return nil
}
func (w *fakeWriter) TakeSnapshot() (bool, error) { return false, nil }

func (w *fakeWriter) snapshotWritten() []bagio.SerializedMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]bagio.SerializedMessage, len(w.written))
	copy(out, w.written)
	return out
}

func TestMergeRejectsEmptyReadersOrWriters(t *testing.T) {
	_, err := New(nil, []bagio.Writer{newFakeWriter()}, nil)
	require.Error(t, err)

	_, err = New([]bagio.Reader{newFakeReader("/x", []int64{1})}, nil, nil)
	require.Error(t, err)
}

func TestTwoReaderInterleavedMerge(t *testing.T) {
	readerX := newFakeReader("x", []int64{10, 30})
	readerY := newFakeReader("y", []int64{20, 40})
	writer := newFakeWriter()

	m, err := New([]bagio.Reader{readerX, readerY}, []bagio.Writer{writer}, nil)
	require.NoError(t, err)

	n, err := m.Merge(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)

	got := writer.snapshotWritten()
	require.Len(t, got, 4)
	want := []struct {
		topic string
		ts    int64
	}{{"x", 10}, {"y", 20}, {"x", 30}, {"y", 40}}
	for i, w := range want {
		require.Equal(t, w.topic, got[i].Topic)
		require.Equal(t, w.ts, got[i].TimeStamp)
	}
}

func TestMergeFansOutToMultipleWriters(t *testing.T) {
	readerX := newFakeReader("x", []int64{1, 2})
	w1 := newFakeWriter()
	w2 := newFakeWriter()

	m, err := New([]bagio.Reader{readerX}, []bagio.Writer{w1, w2}, nil)
	require.NoError(t, err)

	n, err := m.Merge(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, w1.snapshotWritten(), 2)
	require.Len(t, w2.snapshotWritten(), 2)
}

func TestMergeOutputIsNonDecreasingAcrossManyReaders(t *testing.T) {
	a := newFakeReader("a", []int64{5, 15, 50})
	b := newFakeReader("b", []int64{1, 20, 21})
	c := newFakeReader("c", []int64{100})
	writer := newFakeWriter()

	m, err := New([]bagio.Reader{a, b, c}, []bagio.Writer{writer}, nil)
	require.NoError(t, err)

	n, err := m.Merge(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)

	got := writer.snapshotWritten()
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1].TimeStamp, got[i].TimeStamp)
	}
}
