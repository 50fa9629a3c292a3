// Package player implements the Playback Engine (spec.md §4.3): a producer
// goroutine that loads messages from a Reader into a bounded queue, and a
// consumer goroutine that paces their publication against a Virtual Clock,
// plus the control surface (pause/resume/set_rate/play_next/seek) external
// request goroutines use to steer it.
package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alxayo/bagplay/internal/bagio"
	"github.com/alxayo/bagplay/internal/clock"
	"github.com/alxayo/bagplay/internal/errors"
	"github.com/alxayo/bagplay/internal/hooks"
	"github.com/alxayo/bagplay/internal/logger"
	"github.com/alxayo/bagplay/internal/metrics"
	"github.com/alxayo/bagplay/internal/qos"
	"github.com/alxayo/bagplay/internal/queue"
	"github.com/google/uuid"
)

// lowerBoundRatio is L in spec.md §4.3: the producer tops the queue back up
// to N once it drains below L*N, rather than refilling on every message.
const lowerBoundRatio = 0.9

// Config configures one Player pass.
type Config struct {
	// Delay to wait before starting playback. Negative is reported and
	// skipped rather than treated as fatal (spec.md §7, Configuration error).
	Delay time.Duration
	// Loop replays from starting_time_ forever when true.
	Loop bool
	// InitialRate seeds the virtual clock's rate (must be > 0; 0 defaults to 1.0).
	InitialRate float64
	// QueueCapacity is N, the read-ahead queue's bound.
	QueueCapacity int
	// Filter restricts which topics are read and published.
	Filter bagio.StorageFilter
	// ClockPublishFrequency, if > 0, enables the clock topic at this Hz.
	ClockPublishFrequency float64
	ClockTopic            string
	// QoSOverrides forces a specific profile for named topics, bypassing
	// adapted-offer negotiation.
	QoSOverrides map[string]qos.Profile
}

func (c *Config) applyDefaults() {
	if c.InitialRate <= 0 {
		c.InitialRate = 1.0
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 256
	}
	if c.ClockTopic == "" {
		c.ClockTopic = "/clock"
	}
}

// Player drives one playback pass (or, with Loop, repeated passes) over a
// single Reader.
type Player struct {
	cfg     Config
	reader  bagio.Reader
	factory PublisherFactory

	readerMu     sync.Mutex
	startingTime int64

	queue      *queue.Queue
	clock      *clock.Clock
	publishers *publisherMap

	readyMu     sync.Mutex
	readyCond   *sync.Cond
	readyToPlay bool

	skipMu                    sync.Mutex
	skipMessageInMainPlayLoop bool
	cancelWaitForNextMessage  atomic.Bool

	producerDone chan struct{}
	clockPub     *clockPublisher

	sessionID string
	log       *slog.Logger
	hookMgr   *hooks.Manager
	metrics   *metrics.Registry
	ctx       context.Context
}

// New creates a Player over reader, publishing through factory.
func New(reader bagio.Reader, factory PublisherFactory, cfg Config, hookMgr *hooks.Manager, m *metrics.Registry) *Player {
	cfg.applyDefaults()
	p := &Player{
		cfg:        cfg,
		reader:     reader,
		factory:    factory,
		queue:      queue.New(cfg.QueueCapacity),
		clock:      clock.New(0),
		publishers: newPublisherMap(),
		sessionID:  uuid.NewString(),
		hookMgr:    hookMgr,
		metrics:    m,
		ctx:        context.Background(),
	}
	p.readyCond = sync.NewCond(&p.readyMu)
	p.clock.SetRate(cfg.InitialRate)
	if p.metrics != nil {
		p.metrics.PlaybackRate.Set(cfg.InitialRate)
	}
	p.log = logger.WithSession(logger.Logger(), p.sessionID, "player")
	return p
}

// Play runs play() (spec.md §4.3): one pass, or repeated passes if
// cfg.Loop is set. It returns when the pass (or the shutdown context) ends.
func (p *Player) Play(ctx context.Context) error {
	p.ctx = ctx
	for {
		if err := p.playOnePass(ctx); err != nil {
			return err
		}
		if !p.cfg.Loop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (p *Player) playOnePass(ctx context.Context) error {
	if p.cfg.Delay >= 0 {
		select {
		case <-time.After(p.cfg.Delay):
		case <-ctx.Done():
			return nil
		}
	} else {
		p.log.Warn("negative delay configured, skipping wait", "delay", p.cfg.Delay)
	}

	p.readerMu.Lock()
	meta, err := p.reader.Metadata()
	if err != nil {
		p.readerMu.Unlock()
		return errors.NewStorageError("play.metadata", err)
	}
	p.startingTime = meta.StartingTime
	if err := p.reader.Seek(p.startingTime); err != nil {
		p.readerMu.Unlock()
		p.log.Error("failed to play", "error", err)
		return errors.NewStorageError("play.seek", err)
	}
	p.clock.Jump(p.startingTime)
	p.readerMu.Unlock()

	if err := p.preparePublishers(); err != nil {
		return errors.NewStorageError("play.prepare_publishers", err)
	}

	p.producerDone = make(chan struct{})
	go p.loadStorageContent(ctx, p.producerDone)

	p.waitForQueueReadyOrDone(ctx)

	p.emitSessionEvent(hooks.EventPlayStarted, "")
	if err := p.playMessagesFromQueue(ctx); err != nil {
		p.log.Error("failed to play", "error", err)
		p.clearReady()
		return err
	}
	p.clearReady()
	p.emitSessionEvent(hooks.EventPlayStopped, "")
	return nil
}

func (p *Player) waitForQueueReadyOrDone(ctx context.Context) {
	for {
		if p.queue.SizeApprox() >= p.cfg.QueueCapacity {
			return
		}
		select {
		case <-p.producerDone:
			return
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (p *Player) clearReady() {
	p.readyMu.Lock()
	p.readyToPlay = false
	p.readyCond.Broadcast()
	p.readyMu.Unlock()
}

func (p *Player) emitSessionEvent(t hooks.EventType, topic string) {
	if p.hookMgr == nil {
		return
	}
	ev := hooks.NewEvent(t).WithSession(p.sessionID)
	if topic != "" {
		ev = ev.WithTopic(topic)
	}
	p.hookMgr.TriggerEvent(p.ctx, *ev)
}

// Close releases the player's long-running resources (the clock publisher's
// ticker goroutine) and closes the Reader, which the Player owns for its
// whole lifetime per spec.md §9's ownership note.
func (p *Player) Close() error {
	p.clockPub.stop()
	return p.reader.Close()
}

func eventPublishFailureFor(sessionID, topic string, err error) hooks.Event {
	return *hooks.NewEvent(hooks.EventPublishFailure).WithSession(sessionID).WithTopic(topic).WithData("error", err.Error())
}
