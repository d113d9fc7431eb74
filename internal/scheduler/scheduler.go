package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/monitor"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/notify"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrIdle is returned by RunNow when no tournament type is launched
var ErrIdle = errors.New("no tournament type launched")

// Cycler runs one monitoring cycle
type Cycler interface {
	RunCycle(ctx context.Context, types ...models.TournamentType) (*monitor.CycleResult, error)
}

// RollUpper rebuilds the overall rating
type RollUpper interface {
	RollUp(ctx context.Context, types ...models.TournamentType) error
}

// Scheduler runs monitoring cycles over the launched tournament types:
// - on a cron schedule, never overlapping itself
// - on demand, collapsed with any cycle already in flight
// Types whose games have all finished are dropped, rolled up and announced.
type Scheduler struct {
	spec     string
	order    []models.TournamentType
	engine   Cycler
	overall  RollUpper
	notifier notify.Notifier
	cron     *cron.Cron
	flight   singleflight.Group

	mu     sync.Mutex
	active map[models.TournamentType]bool
}

// NewScheduler creates a scheduler. order fixes the order types are cycled in.
func NewScheduler(spec string, order []models.TournamentType, engine Cycler, overall RollUpper, notifier notify.Notifier) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Scheduler{
		spec:     spec,
		order:    order,
		engine:   engine,
		overall:  overall,
		notifier: notifier,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		active:   make(map[models.TournamentType]bool),
	}
}

// Start schedules the monitoring job
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrIdle) {
			log.Error().Err(err).Msg("Scheduled monitoring cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule monitoring: %w", err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.spec).Msg("Monitoring scheduled")
	return nil
}

// Stop stops the schedule and waits for a running job to return
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// Launch adds types to the monitored set and returns the ones newly added
func (s *Scheduler) Launch(types ...models.TournamentType) []models.TournamentType {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []models.TournamentType
	for _, tt := range types {
		if !s.known(tt) || s.active[tt] {
			continue
		}
		s.active[tt] = true
		added = append(added, tt)
	}
	if len(added) > 0 {
		log.Info().Interface("types", added).Msg("Monitoring launched")
	}
	return added
}

// Break removes types from the monitored set and returns the ones removed
func (s *Scheduler) Break(types ...models.TournamentType) []models.TournamentType {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.TournamentType
	for _, tt := range types {
		if !s.active[tt] {
			continue
		}
		delete(s.active, tt)
		removed = append(removed, tt)
	}
	if len(removed) > 0 {
		log.Info().Interface("types", removed).Msg("Monitoring stopped")
	}
	return removed
}

// Active returns the monitored types in cycle order
func (s *Scheduler) Active() []models.TournamentType {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]models.TournamentType, 0, len(s.active))
	for _, tt := range s.order {
		if s.active[tt] {
			active = append(active, tt)
		}
	}
	return active
}

func (s *Scheduler) known(tt models.TournamentType) bool {
	for _, o := range s.order {
		if o == tt {
			return true
		}
	}
	return false
}

// RunNow runs a cycle over the active types. Callers arriving while a cycle
// is in flight share its result.
func (s *Scheduler) RunNow(ctx context.Context) (*monitor.CycleResult, error) {
	v, err, shared := s.flight.Do("cycle", func() (interface{}, error) {
		return s.run(ctx)
	})
	if shared {
		log.Debug().Msg("Joined a monitoring cycle already in flight")
	}
	if v == nil {
		return nil, err
	}
	return v.(*monitor.CycleResult), err
}

// run ignores the caller's cancellation. The cycle is shared by every
// RunNow caller and a finished game's writes must not stop halfway.
func (s *Scheduler) run(ctx context.Context) (*monitor.CycleResult, error) {
	ctx = context.WithoutCancel(ctx)

	types := s.Active()
	if len(types) == 0 {
		log.Debug().Msg("Nothing launched, cycle skipped")
		return nil, ErrIdle
	}

	result, err := s.engine.RunCycle(ctx, types...)
	if err != nil {
		if result != nil {
			s.notifier.Notify(ctx, notify.CycleFailed(result.ID, err))
		}
		return result, err
	}

	if len(result.Exhausted) > 0 {
		s.complete(ctx, result.Exhausted)
	}
	return result, nil
}

// complete retires types that have no games left
func (s *Scheduler) complete(ctx context.Context, types []models.TournamentType) {
	s.Break(types...)

	if s.overall != nil {
		if err := s.overall.RollUp(ctx, types...); err != nil {
			log.Error().Err(err).Interface("types", types).Msg("Overall rating roll-up failed")
		}
	}

	s.notifier.Notify(ctx, notify.TypesCompleted(types))
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
