package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/chuckpreslar/emission"
	"github.com/go-co-op/gocron/v2"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// Static announces a fixed set of seed addresses on start and again every
// interval, so seeds that dropped off are retried.
type Static struct {
	log       logrus.FieldLogger
	interval  time.Duration
	broker    *emission.Emitter
	mu        sync.Mutex
	seeds     []ma.Multiaddr
	scheduler gocron.Scheduler
	started   bool
}

// NewStatic creates a Static finder. A zero interval announces the seeds
// only once.
func NewStatic(seeds []ma.Multiaddr, interval time.Duration, log logrus.FieldLogger) *Static {
	return &Static{
		log:      log.WithField("module", "levin/discovery/static"),
		interval: interval,
		broker:   emission.NewEmitter(),
		seeds:    seeds,
	}
}

func (s *Static) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.started = true

	if s.interval <= 0 {
		go s.announce(ctx)

		return nil
	}

	c, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return err
	}

	if _, err := c.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.announce, ctx),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return err
	}

	s.scheduler = c

	c.Start()

	return nil
}

func (s *Static) Stop(_ context.Context) error {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.started = false
	s.mu.Unlock()

	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			return err
		}
	}

	return nil
}

// UpdateSeeds replaces the announced seeds from the next announcement on.
func (s *Static) UpdateSeeds(seeds []ma.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seeds = seeds
}

func (s *Static) OnPeer(ctx context.Context, handler func(ctx context.Context, addr ma.Multiaddr) error) {
	s.broker.On(topicPeer, func(addr ma.Multiaddr) {
		s.handleSubscriberError(handler(ctx, addr), topicPeer)
	})
}

func (s *Static) announce(ctx context.Context) {
	s.mu.Lock()
	seeds := make([]ma.Multiaddr, len(s.seeds))
	copy(seeds, s.seeds)
	s.mu.Unlock()

	s.log.WithField("seeds", len(seeds)).Debug("Announcing seeds")

	for _, addr := range seeds {
		if ctx.Err() != nil {
			return
		}

		s.publishPeer(ctx, addr)
	}
}

func (s *Static) publishPeer(_ context.Context, addr ma.Multiaddr) {
	s.broker.Emit(topicPeer, addr)
}

func (s *Static) handleSubscriberError(err error, topic string) {
	if err != nil {
		s.log.WithError(err).WithField("topic", topic).Error("Subscriber error")
	}
}
