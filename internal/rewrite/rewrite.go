// Package rewrite implements the Rewrite Merger (spec.md §4.5): a k-way
// timestamp merge across one or more open Readers, fanned out in parallel to
// one or more open Writers.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/errors"
	"github.com/alxayo/bagplay/internal/hooks"
	"github.com/alxayo/bagplay/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Merger drives one rewrite run over a fixed set of Readers and Writers.
type Merger struct {
	readers []bagio.Reader
	writers []bagio.Writer

	sessionID string
	log       *slog.Logger
	hookMgr   *hooks.Manager
}

// New creates a Merger. readers and writers must both be non-empty; callers
// are expected to have already called Open on every one (spec.md §4.5
// states the merger operates on already-open Readers/Writers).
func New(readers []bagio.Reader, writers []bagio.Writer, hookMgr *hooks.Manager) (*Merger, error) {
	if len(readers) == 0 {
		return nil, errors.NewConfigError("rewrite.inputs", fmt.Errorf("at least one reader is required"))
	}
	if len(writers) == 0 {
		return nil, errors.NewConfigError("rewrite.outputs", fmt.Errorf("at least one writer is required"))
	}
	sessionID := uuid.NewString()
	return &Merger{
		readers:   readers,
		writers:   writers,
		sessionID: sessionID,
		hookMgr:   hookMgr,
		log:       logger.WithSession(logger.Logger(), sessionID, "rewrite"),
	}, nil
}

// Merge runs the k-way merge to completion: per-reader head slots, argmin
// selection breaking ties by smallest reader index, emitted to every writer
// in order. Messages from readers that share a topic are all emitted; no
// deduplication is done. Returns the count of messages emitted.
func (m *Merger) Merge(ctx context.Context) (int, error) {
	if err := m.createTopicsOnAllWriters(); err != nil {
		return 0, err
	}

	heads := make([]*bagio.SerializedMessage, len(m.readers))
	emitted := 0

	for {
		select {
		case <-ctx.Done():
			return emitted, ctx.Err()
		default:
		}

		for i, head := range heads {
			if head != nil {
				continue
			}
			if !m.readers[i].HasNext() {
				continue
			}
			msg, err := m.readers[i].ReadNext()
			if err != nil {
				return emitted, errors.NewStorageError("rewrite.read_next", err)
			}
			heads[i] = msg
		}

		j := argminHead(heads)
		if j < 0 {
			break
		}

		if err := m.emitToAllWriters(ctx, heads[j]); err != nil {
			return emitted, err
		}
		emitted++
		heads[j] = nil
	}

	m.log.Info("merge complete", "messages", emitted, "readers", len(m.readers), "writers", len(m.writers))
	m.emitEvent(hooks.EventMergeComplete, ctx)
	return emitted, nil
}

// createTopicsOnAllWriters satisfies the §3 invariant that a Writer has seen
// create_topic for every topic name it is ever asked to write: every topic
// known to any reader is created on every writer before the merge begins.
func (m *Merger) createTopicsOnAllWriters() error {
	seen := make(map[string]bagio.TopicMetadata)
	for _, r := range m.readers {
		topics, err := r.TopicsAndTypes()
		if err != nil {
			return errors.NewStorageError("rewrite.topics_and_types", err)
		}
		for _, t := range topics {
			if _, ok := seen[t.Name]; !ok {
				seen[t.Name] = t
			}
		}
	}
	for _, w := range m.writers {
		for _, t := range seen {
			if err := w.CreateTopic(t); err != nil {
				return errors.NewStorageError("rewrite.create_topic", err)
			}
		}
	}
	return nil
}

// argminHead finds the index of the non-empty slot with the smallest
// TimeStamp, breaking ties by smallest index. Returns -1 if every slot is
// empty.
func argminHead(heads []*bagio.SerializedMessage) int {
	best := -1
	for i, h := range heads {
		if h == nil {
			continue
		}
		if best < 0 || h.TimeStamp < heads[best].TimeStamp {
			best = i
		}
	}
	return best
}

// emitToAllWriters fans the message out to every writer in parallel,
// mirroring relay.DestinationManager.RelayMessage's "send to all, wait for
// all" shape — but surfacing the first error via errgroup instead of
// swallowing per-destination failures, since a rewrite writer failure must
// abort the run rather than silently drop output.
func (m *Merger) emitToAllWriters(ctx context.Context, msg *bagio.SerializedMessage) error {
	eg, _ := errgroup.WithContext(ctx)
	for _, w := range m.writers {
		w := w
		eg.Go(func() error {
			payload := make([]byte, len(msg.Data))
			copy(payload, msg.Data)
			cp := &bagio.SerializedMessage{Topic: msg.Topic, Data: payload, TimeStamp: msg.TimeStamp}
			if err := w.Write(cp); err != nil {
				return errors.NewStorageError("rewrite.write", err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (m *Merger) emitEvent(t hooks.EventType, ctx context.Context) {
	if m.hookMgr == nil {
		return
	}
	m.hookMgr.TriggerEvent(ctx, *hooks.NewEvent(t).WithSession(m.sessionID))
}
