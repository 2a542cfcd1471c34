package draw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/platform/lock"
	"github.com/open-builders/giveaway-raffle/internal/utils/random"
)

// Notifier delivers draw results. Calls are best-effort.
type Notifier interface {
	NotifyWinner(ctx context.Context, g *dg.Giveaway, w dg.Winner) error
	NotifyDrawCompleted(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) error
}

// Service runs draws and redraws for published and finished giveaways.
type Service struct {
	giveaways    dg.Repository
	participants dg.ParticipantRepository
	winners      dg.WinnerRepository
	locker       lock.Locker

	notifier      Notifier
	notifyTimeout time.Duration
	rng           random.Source
	now           func() time.Time

	wg sync.WaitGroup
}

func NewService(giveaways dg.Repository, participants dg.ParticipantRepository, winners dg.WinnerRepository, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		giveaways:     giveaways,
		participants:  participants,
		winners:       winners,
		locker:        locker,
		notifyTimeout: 30 * time.Second,
		rng:           random.New(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier enables winner and admin notifications.
func (s *Service) WithNotifier(n Notifier, timeout time.Duration) *Service {
	s.notifier = n
	if timeout > 0 {
		s.notifyTimeout = timeout
	}
	return s
}

// WithRandom replaces the random source. It must be safe for concurrent use
// when draws for different giveaways run in parallel.
func (s *Service) WithRandom(src random.Source) *Service {
	s.rng = src
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DrawWinners selects the winners of a published giveaway and finishes it.
func (s *Service) DrawWinners(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	return s.run(ctx, giveawayID, false)
}

// Redraw discards the winners of a finished giveaway and draws again from
// the same participants.
func (s *Service) Redraw(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	return s.run(ctx, giveawayID, true)
}

// Wait blocks until queued notifications have been handed off.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) run(ctx context.Context, giveawayID string, redraw bool) ([]dg.Winner, error) {
	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(giveawayID))
	if err != nil {
		return nil, fmt.Errorf("lock giveaway %s: %w", giveawayID, err)
	}
	defer unlock()

	g, err := s.giveaways.GetByID(ctx, giveawayID)
	if err != nil {
		return nil, dg.PersistenceError("load giveaway", err)
	}

	want := dg.StatusPublished
	if redraw {
		want = dg.StatusFinished
	}
	if g.Status != want {
		return nil, fmt.Errorf("%w: cannot draw giveaway in status %s", dg.ErrInvalidState, g.Status)
	}

	participants, err := s.participants.List(ctx, giveawayID)
	if err != nil {
		return nil, dg.PersistenceError("list participants", err)
	}
	if len(participants) == 0 {
		return nil, dg.ErrNoParticipants
	}

	pool := BuildPool(participants, ConfigOf(g))
	picked, err := SelectWinners(pool, g.PrizesCount, s.rng)
	if err != nil {
		return nil, err
	}

	now := s.now()
	winners := make([]dg.Winner, 0, len(picked))
	for _, sel := range picked {
		winners = append(winners, dg.Winner{
			GiveawayID: giveawayID,
			UserID:     sel.UserID,
			Place:      sel.Place,
			SelectedAt: now,
		})
	}

	if redraw {
		err = s.winners.ReplaceWinners(ctx, giveawayID, winners, now)
	} else {
		err = s.winners.CommitDraw(ctx, giveawayID, winners, now)
	}
	if err != nil {
		if errors.Is(err, dg.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: status changed during draw", dg.ErrInvalidState)
		}
		return nil, dg.PersistenceError("save winners", err)
	}

	g.Status = dg.StatusFinished
	g.FinishedAt = &now
	log.Info().
		Str("giveaway_id", giveawayID).
		Int("winners", len(winners)).
		Int("participants", pool.Len()+len(winners)).
		Bool("redraw", redraw).
		Msg("draw committed")

	s.notify(g, winners)
	return winners, nil
}

// notify runs after commit and never affects the draw outcome. It outlives
// the caller, so it never inherits the caller's context.
func (s *Service) notify(g *dg.Giveaway, winners []dg.Winner) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		for _, w := range winners {
			if err := s.notifier.NotifyWinner(nctx, g, w); err != nil {
				log.Warn().Err(err).Str("giveaway_id", g.ID).Int64("user_id", w.UserID).Msg("winner notification failed")
			}
		}
		if err := s.notifier.NotifyDrawCompleted(nctx, g, winners); err != nil {
			log.Warn().Err(err).Str("giveaway_id", g.ID).Int64("admin_id", g.AdminID).Msg("admin draw notification failed")
		}
	}()
}
