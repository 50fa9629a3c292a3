package bagio

// File-backed reference Reader/Writer (test fixture only).
// --------------------------------------------------------
// Framing mirrors the teacher's FLV tag writer (internal/rtmp/media/
// recorder.go): a small fixed header, then one length-prefixed frame per
// entry, with the writer disabling itself permanently on the first I/O
// error rather than attempting to recover mid-stream.
//
// On-disk layout:
//
//	magic:     4 bytes "BAG1"
//	topic table: varint count, then per topic:
//	    varint len(name) + name
//	    varint len(type) + type
//	    varint len(serialization_format) + serialization_format
//	    varint len(offered_qos_profiles) + offered_qos_profiles
//	messages: until EOF, each:
//	    varint len(topic) + topic
//	    8 bytes big-endian time_stamp (int64, nanoseconds)
//	    varint len(payload) + payload
//
// Messages are expected to be appended in non-decreasing time_stamp order,
// matching the §3 invariant that a single reader's cursor only ever advances
// through a monotonic sequence. FileWriter does not check this order.

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

var bagMagic = [4]byte{'B', 'A', 'G', '1'}

// FileWriter persists SerializedMessages to a single framed file. Safe for
// concurrent Write calls (internally mutex-guarded), matching the Writer
// contract's thread-safety requirement.
type FileWriter struct {
	mu          sync.Mutex
	w           *bufio.Writer
	f           *os.File
	topics      map[string]TopicMetadata
	wroteHeader bool
	lastTS      int64
	disabled    bool
}

// NewFileWriter returns an unopened FileWriter; Open creates (truncating)
// the file at opts.URI for framed writing.
func NewFileWriter() *FileWriter {
	return &FileWriter{topics: make(map[string]TopicMetadata)}
}

func (w *FileWriter) Open(opts StorageOptions, _ ConversionOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.Create(opts.URI)
	if err != nil {
		return fmt.Errorf("bagio.FileWriter.Open: %w", err)
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	w.lastTS = 0
	w.disabled = false
	w.wroteHeader = false
	return nil
}

// CreateTopic registers a topic. The topic table is written lazily, on the
// first Write (or on Close if nothing was written), so every topic created
// before that point lands in the header. Topics created after the first
// Write are accepted for writing but are not in the file's topic table.
func (w *FileWriter) CreateTopic(t TopicMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("bagio.FileWriter.CreateTopic: not open")
	}
	w.topics[t.Name] = t
	return nil
}

func (w *FileWriter) RemoveTopic(t TopicMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.topics, t.Name)
	return nil
}

func (w *FileWriter) flushHeaderLocked() error {
	if w.wroteHeader {
		return nil
	}
	if _, err := w.w.Write(bagMagic[:]); err != nil {
		return err
	}
	if err := writeUvarint(w.w, uint64(len(w.topics))); err != nil {
		return err
	}
	for _, t := range w.topics {
		if err := writeString(w.w, t.Name); err != nil {
			return err
		}
		if err := writeString(w.w, t.Type); err != nil {
			return err
		}
		if err := writeString(w.w, t.SerializationFormat); err != nil {
			return err
		}
		if err := writeString(w.w, t.OfferedQoSProfiles); err != nil {
			return err
		}
	}
	w.wroteHeader = true
	return nil
}

// Write appends a message frame. Per the Writer contract, the topic must
// already have been created; violating that invariant is a programmer
// error and returns ErrTopicNotCreated rather than silently succeeding.
func (w *FileWriter) Write(msg *SerializedMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disabled {
		return fmt.Errorf("bagio.FileWriter.Write: writer disabled after prior error")
	}
	if _, ok := w.topics[msg.Topic]; !ok {
		return &ErrTopicNotCreated{Topic: msg.Topic}
	}
	if err := w.flushHeaderLocked(); err != nil {
		w.disableLocked()
		return fmt.Errorf("bagio.FileWriter.Write: header: %w", err)
	}
	if err := writeString(w.w, msg.Topic); err != nil {
		w.disableLocked()
		return err
	}
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(msg.TimeStamp))
	if _, err := w.w.Write(tsBuf[:]); err != nil {
		w.disableLocked()
		return err
	}
	if err := writeBytes(w.w, msg.Data); err != nil {
		w.disableLocked()
		return err
	}
	w.lastTS = msg.TimeStamp
	return nil
}

// TakeSnapshot flushes buffered output to disk. This fixture has no
// snapshot-mode distinction from a normal flush; it returns true unless the
// writer is not open, is disabled, or the flush fails.
func (w *FileWriter) TakeSnapshot() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disabled || w.w == nil {
		return false, nil
	}
	if err := w.w.Flush(); err != nil {
		w.disableLocked()
		return false, err
	}
	return true, nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	if !w.disabled {
		_ = w.flushHeaderLocked()
		_ = w.w.Flush()
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *FileWriter) disableLocked() {
	w.disabled = true
}

// FileReader reads back a file produced by FileWriter. It loads the whole
// message sequence into memory at Open — acceptable for a test fixture,
// unlike the real storage engine this stands in for.
type FileReader struct {
	topics   []TopicMetadata
	messages []SerializedMessage
	cursor   int
	filter   StorageFilter
}

func NewFileReader() *FileReader { return &FileReader{} }

func (r *FileReader) Open(opts StorageOptions, _ ConversionOptions) error {
	f, err := os.Open(opts.URI)
	if err != nil {
		return fmt.Errorf("bagio.FileReader.Open: %w", err)
	}
	defer f.Close()
	br := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return fmt.Errorf("bagio.FileReader.Open: magic: %w", err)
	}
	if magic != bagMagic {
		return fmt.Errorf("bagio.FileReader.Open: bad magic")
	}
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return fmt.Errorf("bagio.FileReader.Open: topic count: %w", err)
	}
	topics := make([]TopicMetadata, 0, count)
	for i := uint64(0); i < count; i++ {
		name, err := readString(br)
		if err != nil {
			return err
		}
		typ, err := readString(br)
		if err != nil {
			return err
		}
		format, err := readString(br)
		if err != nil {
			return err
		}
		qos, err := readString(br)
		if err != nil {
			return err
		}
		topics = append(topics, TopicMetadata{Name: name, Type: typ, SerializationFormat: format, OfferedQoSProfiles: qos})
	}

	var messages []SerializedMessage
	for {
		topic, err := readString(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("bagio.FileReader.Open: message topic: %w", err)
		}
		var tsBuf [8]byte
		if _, err := io.ReadFull(br, tsBuf[:]); err != nil {
			return fmt.Errorf("bagio.FileReader.Open: message timestamp: %w", err)
		}
		ts := int64(binary.BigEndian.Uint64(tsBuf[:]))
		data, err := readBytes(br)
		if err != nil {
			return fmt.Errorf("bagio.FileReader.Open: message payload: %w", err)
		}
		messages = append(messages, SerializedMessage{Topic: topic, Data: data, TimeStamp: ts})
	}

	r.topics = topics
	r.messages = messages
	r.cursor = 0
	return nil
}

func (r *FileReader) Close() error { return nil }

func (r *FileReader) HasNext() bool {
	for i := r.cursor; i < len(r.messages); i++ {
		if r.filter.Allows(r.messages[i].Topic) {
			return true
		}
	}
	return false
}

func (r *FileReader) ReadNext() (*SerializedMessage, error) {
	for r.cursor < len(r.messages) {
		m := r.messages[r.cursor]
		r.cursor++
		if r.filter.Allows(m.Topic) {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("bagio.FileReader.ReadNext: no more messages")
}

// Seek moves the cursor to the first message with time_stamp >= t. Seeking
// past the end of the bag leaves HasNext false, matching the "open question"
// in spec.md §9 (no upper clamp; the caller decides what that means).
func (r *FileReader) Seek(t int64) error {
	for i, m := range r.messages {
		if m.TimeStamp >= t {
			r.cursor = i
			return nil
		}
	}
	r.cursor = len(r.messages)
	return nil
}

func (r *FileReader) Metadata() (BagMetadata, error) {
	if len(r.messages) == 0 {
		return BagMetadata{}, nil
	}
	min := r.messages[0].TimeStamp
	for _, m := range r.messages {
		if m.TimeStamp < min {
			min = m.TimeStamp
		}
	}
	return BagMetadata{StartingTime: min, MessageCount: len(r.messages)}, nil
}

func (r *FileReader) TopicsAndTypes() ([]TopicMetadata, error) {
	out := make([]TopicMetadata, len(r.topics))
	copy(out, r.topics)
	return out, nil
}

func (r *FileReader) SetFilter(f StorageFilter) { r.filter = f }

// --- small varint/string helpers (kept local; no third-party framing lib
// fits a 4-function encode/decode helper this size) ---

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readString(r *bufio.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
