package player

import (
	"context"
	"time"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/hooks"
)

// playMessagesFromQueue is the consumer driver (spec.md §4.3).
func (p *Player) playMessagesFromQueue(ctx context.Context) error {
	message := p.peekOrWaitForFirst(ctx)

	p.readyMu.Lock()
	p.readyToPlay = true
	p.readyCond.Broadcast()
	p.readyMu.Unlock()

	for message != nil {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for !p.clock.SleepUntil(message.TimeStamp) {
			if p.cancelWaitForNextMessage.Swap(false) {
				break
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}

		p.skipMu.Lock()
		if p.skipMessageInMainPlayLoop {
			p.skipMessageInMainPlayLoop = false
			p.cancelWaitForNextMessage.Store(false)
			p.skipMu.Unlock()
			message = p.queue.Peek()
			continue
		}
		p.skipMu.Unlock()

		p.publishMessage(message)
		p.queue.Pop()
		message = p.queue.Peek()
	}

	for p.IsPaused() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		p.clock.SleepUntil(p.clock.Now())
	}
	return nil
}

// peekOrWaitForFirst implements §4.3.1 starvation handling: peek once; if
// empty and the producer is still running, warn once and poll until a
// message appears or the producer finishes, with a final re-peek to close
// the race where the producer finishes between the check and the peek.
func (p *Player) peekOrWaitForFirst(ctx context.Context) *bagio.SerializedMessage {
	if m := p.queue.Peek(); m != nil {
		return m
	}

	select {
	case <-p.producerDone:
		return p.queue.Peek()
	default:
	}

	p.log.Warn("read-ahead queue starved, waiting for producer")
	if p.metrics != nil {
		p.metrics.StarvationEvents.Inc()
	}
	p.emitSessionEvent(hooks.EventQueueStarved, "")

	for {
		if m := p.queue.Peek(); m != nil {
			return m
		}
		select {
		case <-p.producerDone:
			return p.queue.Peek()
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Microsecond):
		}
	}
}

// publishMessage implements publish_message: lookup the publisher by topic;
// publish a private copy of the payload, mirroring the teacher's
// "clone before fan-out" rule in server/registry.go's BroadcastMessage, so
// the publisher retains a buffer the Reader is free to reuse afterward.
func (p *Player) publishMessage(message *bagio.SerializedMessage) bool {
	pub := p.publishers.lookup(message.Topic)
	if pub == nil {
		return false
	}

	payload := make([]byte, len(message.Data))
	copy(payload, message.Data)
	ok := pub.TryPublish(payload)

	if p.metrics != nil && ok {
		p.metrics.MessagesPublished.WithLabelValues(message.Topic).Inc()
	}
	if !ok {
		p.log.Debug("publish failed or dropped", "topic", message.Topic)
	}
	return ok
}
