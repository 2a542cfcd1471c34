// Package scheduler publishes giveaways at their scheduled time.
//
// The persisted scheduled_publish timestamp is the source of truth; the
// timer table is rebuilt from it on Start and by a periodic reconcile sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/platform/lock"
)

// AdminNotifier tells the owner their giveaway went live.
type AdminNotifier interface {
	NotifyPublished(ctx context.Context, g *dg.Giveaway) error
}

// Stats are lifetime counters plus the current number of armed timers.
type Stats struct {
	Pending   int   `json:"pending"`
	Armed     int64 `json:"armed"`
	Fired     int64 `json:"fired"`
	Cancelled int64 `json:"cancelled"`
}

type task struct {
	id    string
	at    time.Time
	timer *time.Timer
}

type Scheduler struct {
	giveaways dg.Repository
	locker    lock.Locker
	notifier  AdminNotifier
	now       func() time.Time

	reconcileSpec string
	cron          *cron.Cron
	notifyTimeout time.Duration

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	armed     *atomic.Int64
	fired     *atomic.Int64
	cancelled *atomic.Int64
}

func New(giveaways dg.Repository, locker lock.Locker) *Scheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		giveaways:     giveaways,
		locker:        locker,
		now:           func() time.Time { return time.Now().UTC() },
		reconcileSpec: "@every 1m",
		notifyTimeout: 10 * time.Second,
		tasks:         make(map[string]*task),
		ctx:           ctx,
		cancel:        cancel,
		armed:         atomic.NewInt64(0),
		fired:         atomic.NewInt64(0),
		cancelled:     atomic.NewInt64(0),
	}
}

func (s *Scheduler) WithNotifier(n AdminNotifier) *Scheduler {
	s.notifier = n
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithReconcile sets the cron spec of the reconcile sweep. Empty disables it.
func (s *Scheduler) WithReconcile(spec string) *Scheduler {
	s.reconcileSpec = spec
	return s
}

// Start arms a timer for every scheduled giveaway in the store, firing
// overdue ones immediately, and starts the reconcile sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	n, err := s.restore(ctx)
	if err != nil {
		return fmt.Errorf("scheduler restore: %w", err)
	}
	log.Info().Int("restored", n).Msg("scheduler started")

	if s.reconcileSpec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.reconcileSpec, s.reconcile); err != nil {
		return fmt.Errorf("scheduler reconcile spec %q: %w", s.reconcileSpec, err)
	}
	c.Start()
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	return nil
}

// Stop disarms all timers and waits for in-flight publishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	c := s.cron
	for id, t := range s.tasks {
		s.disarmLocked(t)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

// Schedule persists a future publish time for a created giveaway and arms
// its timer.
func (s *Scheduler) Schedule(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	if !at.After(s.now()) {
		return dg.ErrInvalidTime
	}

	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return fmt.Errorf("lock giveaway %s: %w", id, err)
	}
	defer unlock()

	g, err := s.giveaways.GetByID(ctx, id)
	if err != nil {
		return dg.PersistenceError("load giveaway", err)
	}
	switch g.Status {
	case dg.StatusScheduled:
		return dg.ErrAlreadyScheduled
	case dg.StatusCreated:
	default:
		return fmt.Errorf("%w: cannot schedule giveaway in status %s", dg.ErrInvalidState, g.Status)
	}

	err = s.giveaways.TransitionStatus(ctx, id, dg.Transition{From: dg.StatusCreated, To: dg.StatusScheduled, ScheduledPublish: &at})
	if errors.Is(err, dg.ErrStatusConflict) {
		return fmt.Errorf("%w: status changed concurrently", dg.ErrInvalidState)
	}
	if err != nil {
		return dg.PersistenceError("schedule giveaway", err)
	}

	s.arm(id, at)
	log.Info().Str("giveaway_id", id).Time("publish_at", at).Msg("giveaway scheduled")
	return nil
}

// Cancel reverts a scheduled giveaway to created. It returns ErrNotScheduled
// when there is nothing to cancel, including when the timer already fired.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return fmt.Errorf("lock giveaway %s: %w", id, err)
	}
	defer unlock()

	g, err := s.giveaways.GetByID(ctx, id)
	if err != nil {
		return dg.PersistenceError("load giveaway", err)
	}
	if g.Status != dg.StatusScheduled {
		return dg.ErrNotScheduled
	}

	err = s.giveaways.TransitionStatus(ctx, id, dg.Transition{From: dg.StatusScheduled, To: dg.StatusCreated, At: s.now()})
	if errors.Is(err, dg.ErrStatusConflict) {
		return dg.ErrNotScheduled
	}
	if err != nil {
		return dg.PersistenceError("cancel schedule", err)
	}

	s.disarm(id)
	s.cancelled.Inc()
	log.Info().Str("giveaway_id", id).Msg("scheduled publish cancelled")
	return nil
}

// Publish moves a scheduled giveaway to published and notifies its admin.
// It is a no-op when the giveaway is no longer scheduled.
func (s *Scheduler) Publish(ctx context.Context, id string) error {
	return s.publish(ctx, id, false)
}

// publishDue is the timer path: it publishes only once the stored publish
// time has arrived. A timer left over from an earlier schedule re-arms for
// the stored time instead.
func (s *Scheduler) publishDue(ctx context.Context, id string) error {
	return s.publish(ctx, id, true)
}

func (s *Scheduler) publish(ctx context.Context, id string, due bool) error {
	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return fmt.Errorf("lock giveaway %s: %w", id, err)
	}
	defer unlock()

	g, err := s.giveaways.GetByID(ctx, id)
	if err != nil {
		return dg.PersistenceError("load giveaway", err)
	}
	if g.Status != dg.StatusScheduled {
		log.Debug().Str("giveaway_id", id).Str("status", g.Status.String()).Msg("publish skipped")
		s.disarm(id)
		return nil
	}

	now := s.now()
	if due && g.ScheduledPublish != nil && g.ScheduledPublish.After(now) {
		at := g.ScheduledPublish.UTC()
		if pending, ok := s.Pending(id); !ok || !pending.Equal(at) {
			s.arm(id, at)
		}
		log.Debug().Str("giveaway_id", id).Time("publish_at", at).Msg("stale timer, publish time moved")
		return nil
	}
	err = s.giveaways.TransitionStatus(ctx, id, dg.Transition{From: dg.StatusScheduled, To: dg.StatusPublished, At: now})
	if errors.Is(err, dg.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return dg.PersistenceError("publish giveaway", err)
	}
	s.disarm(id)
	s.fired.Inc()

	g.Status = dg.StatusPublished
	g.PublishedAt = &now
	g.ScheduledPublish = nil
	log.Info().Str("giveaway_id", id).Msg("giveaway published")
	s.notifyPublished(g)
	return nil
}

// Pending reports whether a timer is armed for id.
func (s *Scheduler) Pending(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	pending := len(s.tasks)
	s.mu.Unlock()
	return Stats{
		Pending:   pending,
		Armed:     s.armed.Load(),
		Fired:     s.fired.Load(),
		Cancelled: s.cancelled.Load(),
	}
}

func (s *Scheduler) restore(ctx context.Context) (int, error) {
	list, err := s.giveaways.ListByStatus(ctx, dg.StatusScheduled)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range list {
		if g.ScheduledPublish == nil {
			log.Warn().Str("giveaway_id", g.ID).Msg("scheduled giveaway without publish time, publishing now")
			s.arm(g.ID, s.now())
		} else {
			s.arm(g.ID, *g.ScheduledPublish)
		}
		n++
	}
	return n, nil
}

// reconcile re-arms timers missing from the table and drops timers whose
// giveaway left the scheduled state through another instance.
func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	list, err := s.giveaways.ListByStatus(ctx, dg.StatusScheduled)
	if err != nil {
		log.Error().Err(err).Msg("scheduler reconcile failed")
		return
	}
	want := make(map[string]time.Time, len(list))
	for _, g := range list {
		at := s.now()
		if g.ScheduledPublish != nil {
			at = *g.ScheduledPublish
		}
		want[g.ID] = at
	}

	var rearm []string
	s.mu.Lock()
	for id, t := range s.tasks {
		if _, ok := want[id]; !ok {
			s.disarmLocked(t)
			delete(s.tasks, id)
		}
	}
	for id, at := range want {
		if t, ok := s.tasks[id]; !ok || !t.at.Equal(at) {
			rearm = append(rearm, id)
		}
	}
	s.mu.Unlock()

	for _, id := range rearm {
		s.arm(id, want[id])
	}
	if len(rearm) > 0 {
		log.Info().Int("rearmed", len(rearm)).Msg("scheduler reconciled")
	}
}

func (s *Scheduler) arm(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.tasks[id]; ok {
		s.disarmLocked(old)
	}
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	t := &task{id: id, at: at}
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() { s.fire(t) })
	s.tasks[id] = t
	s.armed.Inc()
}

func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		s.disarmLocked(t)
		delete(s.tasks, id)
	}
}

// disarmLocked stops t; the wait group is released here only when the timer
// callback will never run.
func (s *Scheduler) disarmLocked(t *task) {
	if t.timer.Stop() {
		s.wg.Done()
	}
}

func (s *Scheduler) fire(t *task) {
	defer s.wg.Done()

	s.mu.Lock()
	current, ok := s.tasks[t.id]
	if !ok || current != t {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, t.id)
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if err := s.publishDue(s.ctx, t.id); err != nil {
		log.Error().Err(err).Str("giveaway_id", t.id).Msg("scheduled publish failed")
	}
}

func (s *Scheduler) notifyPublished(g *dg.Giveaway) {
	if s.notifier == nil {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyPublished(nctx, g); err != nil {
			log.Warn().Err(err).Str("giveaway_id", g.ID).Int64("admin_id", g.AdminID).Msg("publish notification failed")
		}
	}()
}
