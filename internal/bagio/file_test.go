package bagio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bag")

	w := NewFileWriter()
	require.NoError(t, w.Open(StorageOptions{URI: path}, ConversionOptions{}))
	require.NoError(t, w.CreateTopic(TopicMetadata{Name: "/a", Type: "std/String", SerializationFormat: "cdr"}))
	require.NoError(t, w.CreateTopic(TopicMetadata{Name: "/b", Type: "std/Int32", SerializationFormat: "cdr"}))

	msgs := []SerializedMessage{
		{Topic: "/a", Data: []byte("one"), TimeStamp: 100},
		{Topic: "/b", Data: []byte("two"), TimeStamp: 150},
		{Topic: "/a", Data: []byte("three"), TimeStamp: 200},
	}
	for _, m := range msgs {
		mm := m
		require.NoError(t, w.Write(&mm))
	}
	require.NoError(t, w.Close())

	r := NewFileReader()
	require.NoError(t, r.Open(StorageOptions{URI: path}, ConversionOptions{}))
	defer r.Close()

	topics, err := r.TopicsAndTypes()
	require.NoError(t, err)
	require.Len(t, topics, 2)

	meta, err := r.Metadata()
	require.NoError(t, err)
	require.Equal(t, int64(100), meta.StartingTime)
	require.Equal(t, 3, meta.MessageCount)

	var got []SerializedMessage
	for r.HasNext() {
		m, err := r.ReadNext()
		require.NoError(t, err)
		got = append(got, *m)
	}
	require.Len(t, got, 3)
	require.Equal(t, "one", string(got[0].Data))
	require.Equal(t, int64(200), got[2].TimeStamp)
}

func TestFileWriterRejectsUncreatedTopic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bag")

	w := NewFileWriter()
	require.NoError(t, w.Open(StorageOptions{URI: path}, ConversionOptions{}))
	defer w.Close()

	err := w.Write(&SerializedMessage{Topic: "/unknown", Data: []byte("x"), TimeStamp: 1})
	require.Error(t, err)
	var notCreated *ErrTopicNotCreated
	require.ErrorAs(t, err, &notCreated)
}

func TestFileReaderSeekAndFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bag")

	w := NewFileWriter()
	require.NoError(t, w.Open(StorageOptions{URI: path}, ConversionOptions{}))
	require.NoError(t, w.CreateTopic(TopicMetadata{Name: "/a"}))
	for _, ts := range []int64{10, 20, 30, 40, 50} {
		require.NoError(t, w.Write(&SerializedMessage{Topic: "/a", Data: []byte("x"), TimeStamp: ts}))
	}
	require.NoError(t, w.Close())

	r := NewFileReader()
	require.NoError(t, r.Open(StorageOptions{URI: path}, ConversionOptions{}))
	defer r.Close()

	require.NoError(t, r.Seek(25))
	m, err := r.ReadNext()
	require.NoError(t, err)
	require.Equal(t, int64(30), m.TimeStamp)

	require.NoError(t, r.Seek(1000))
	require.False(t, r.HasNext())

	r.SetFilter(StorageFilter{Topics: []string{"/other"}})
	require.NoError(t, r.Seek(0))
	require.False(t, r.HasNext())
}

func TestStorageFilterAllows(t *testing.T) {
	f := StorageFilter{}
	require.True(t, f.Allows("/anything"))

	f = StorageFilter{Topics: []string{"/a", "/b"}}
	require.True(t, f.Allows("/a"))
	require.False(t, f.Allows("/c"))
}
