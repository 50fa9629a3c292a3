package player

import "github.com/alxayo/bagplay/internal/hooks"

// Pause implements the `pause` RPC: clock.pause().
func (p *Player) Pause() {
	p.clock.Pause()
	p.emitSessionEvent(hooks.EventPaused, "")
}

// Resume implements the `resume` RPC: clock.resume().
func (p *Player) Resume() {
	p.clock.Resume()
	p.emitSessionEvent(hooks.EventResumed, "")
}

// TogglePaused implements `toggle_paused`: branches on current state.
func (p *Player) TogglePaused() bool {
	if p.clock.IsPaused() {
		p.Resume()
		return false
	}
	p.Pause()
	return true
}

// IsPaused implements `is_paused`.
func (p *Player) IsPaused() bool {
	return p.clock.IsPaused()
}

// IsReadyToPlay reports whether the consumer has reached readiness for the
// current pass (is_ready_to_play_from_queue).
func (p *Player) IsReadyToPlay() bool {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()
	return p.readyToPlay
}

// GetRate implements `get_rate`.
func (p *Player) GetRate() float64 {
	return p.clock.Rate()
}

// SetRate implements `set_rate`; returns whether the rate was accepted.
func (p *Player) SetRate(rate float64) bool {
	ok := p.clock.SetRate(rate)
	if ok {
		if p.metrics != nil {
			p.metrics.PlaybackRate.Set(rate)
		}
		p.emitSessionEvent(hooks.EventRateChanged, "")
	}
	return ok
}

// PlayNext implements `play_next` (spec.md §4.3). It requires the player be
// paused; otherwise it warns and returns false. It steals the consumer's
// turn via the skip flag, waits for the consumer to reach readiness, then
// publishes messages from the queue head until one with a live publisher is
// found (messages for unknown/filtered topics are skipped without counting
// as "the next message").
func (p *Player) PlayNext() bool {
	if !p.IsPaused() {
		p.log.Warn("play_next called while not paused")
		return false
	}

	p.skipMu.Lock()
	p.skipMessageInMainPlayLoop = true
	p.skipMu.Unlock()

	p.readyMu.Lock()
	for !p.readyToPlay {
		p.readyCond.Wait()
	}
	p.readyMu.Unlock()

	published := false
	message := p.queue.Peek()
	for message != nil && !published {
		if p.publishMessage(message) {
			published = true
			p.clock.Jump(message.TimeStamp)
		}
		p.queue.Pop()
		message = p.queue.Peek()
	}
	return published
}

// Seek implements `seek(t)` (spec.md §4.3). t is clamped to starting_time_
// on the low end only (no upper clamp — see spec.md §9's open question on
// seeking past the bag's end). It returns an error only if the Reader's own
// seek fails.
func (p *Player) Seek(t int64) error {
	if t < p.startingTime {
		t = p.startingTime
	}

	p.skipMu.Lock()
	p.skipMessageInMainPlayLoop = true
	p.skipMu.Unlock()
	p.cancelWaitForNextMessage.Store(true)

	p.readerMu.Lock()
	p.queue.Drain()
	if err := p.reader.Seek(t); err != nil {
		p.readerMu.Unlock()
		return err
	}
	p.clock.Jump(t)
	producerFinished := false
	select {
	case <-p.producerDone:
		producerFinished = true
	default:
	}
	p.readerMu.Unlock()

	if producerFinished {
		p.producerDone = make(chan struct{})
		go p.loadStorageContent(p.ctx, p.producerDone)
	}

	p.emitSessionEvent(hooks.EventSought, "")
	return nil
}
