package player

import (
	"encoding/binary"
	"time"
)

// clockPublisher wraps a Publisher with a periodic wall-clock ticker that
// publishes clock.now() on the configured clock topic. The ticker+stopChan
// shutdown idiom mirrors the teacher's MediaLogger.statsLoop.
type clockPublisher struct {
	pub      Publisher
	ticker   *time.Ticker
	stopChan chan struct{}
}

// startClockPublisher implements the clock-topic half of prepare_publishers:
// if cfg.ClockPublishFrequency > 0, create a publisher for the clock topic
// and a periodic wall-timer publishing clock.now() at 1/frequency.
func (p *Player) startClockPublisher() error {
	pub, err := p.factory(clockTopicMetadata(p.cfg.ClockTopic), clockTopicQoS())
	if err != nil {
		return err
	}

	interval := time.Duration(float64(time.Second) / p.cfg.ClockPublishFrequency)
	cp := &clockPublisher{pub: pub, ticker: time.NewTicker(interval), stopChan: make(chan struct{})}
	p.clockPub = cp
	go cp.run(p)
	return nil
}

func (cp *clockPublisher) run(p *Player) {
	for {
		select {
		case <-cp.stopChan:
			return
		case <-cp.ticker.C:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(p.clock.Now()))
			cp.pub.TryPublish(buf[:])
		}
	}
}

func (cp *clockPublisher) stop() {
	if cp == nil {
		return
	}
	close(cp.stopChan)
	cp.ticker.Stop()
}
