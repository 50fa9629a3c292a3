package player

import (
	"context"
	"time"
)

// loadStorageContent is the producer task (spec.md §4.3): while the Reader
// has more messages, top the queue back up to capacity once it drains below
// lowerBoundRatio*N, otherwise sleep briefly without holding the reader
// mutex so seek() and the consumer are never blocked behind the producer's
// idle polling.
func (p *Player) loadStorageContent(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.queue.SizeApprox() >= int(float64(p.cfg.QueueCapacity)*lowerBoundRatio) {
			select {
			case <-time.After(time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		p.readerMu.Lock()
		for p.queue.SizeApprox() < p.cfg.QueueCapacity {
			if !p.reader.HasNext() {
				p.readerMu.Unlock()
				return
			}
			msg, err := p.reader.ReadNext()
			if err != nil {
				p.log.Error("failed to play", "error", err)
				p.readerMu.Unlock()
				return
			}
			if !p.queue.Enqueue(msg) {
				break
			}
		}
		p.readerMu.Unlock()

		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(p.queue.SizeApprox()))
			p.metrics.QueueCapacity.Set(float64(p.cfg.QueueCapacity))
		}
	}
}
