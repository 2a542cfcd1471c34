package giveaway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/platform/lock"
)

// CreateInput is what an administrator supplies for a new giveaway.
type CreateInput struct {
	AdminID               int64    `validate:"required"`
	Name                  string   `validate:"required,max=255"`
	Description           string   `validate:"max=4096"`
	PrizesCount           int      `validate:"min=1,max=1000"`
	MaxParticipants       int      `validate:"min=0"`
	RequiredChannels      []string `validate:"max=10,dive,required"`
	ReferralEnabled       bool
	ReferralMultiplier    float64 `validate:"omitempty,gte=1"`
	MaxReferralMultiplier float64 `validate:"omitempty,gte=1"`
	ChallengeEnabled      bool
}

// ScheduledPublisher publishes a scheduled giveaway and disarms its timer.
type ScheduledPublisher interface {
	Publish(ctx context.Context, id string) error
}

// AdminNotifier tells the owner their giveaway went live.
type AdminNotifier interface {
	NotifyPublished(ctx context.Context, g *dg.Giveaway) error
}

// Service contains business rules for giveaways outside the draw itself.
type Service struct {
	repo         dg.Repository
	participants dg.ParticipantRepository
	winners      dg.WinnerRepository
	locker       lock.Locker
	scheduled    ScheduledPublisher
	notifier     AdminNotifier
	superAdmins  map[int64]struct{}
	validate     *validator.Validate
	now          func() time.Time
}

func NewService(repo dg.Repository, participants dg.ParticipantRepository, winners dg.WinnerRepository, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		repo:         repo,
		participants: participants,
		winners:      winners,
		locker:       locker,
		validate:     validator.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithScheduler(p ScheduledPublisher) *Service {
	s.scheduled = p
	return s
}

func (s *Service) WithNotifier(n AdminNotifier) *Service {
	s.notifier = n
	return s
}

// WithSuperAdmins lets the given users operate on every giveaway.
func (s *Service) WithSuperAdmins(ids map[int64]struct{}) *Service {
	s.superAdmins = ids
	return s
}

// Create validates and persists a new giveaway in status created.
func (s *Service) Create(ctx context.Context, in CreateInput) (*dg.Giveaway, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", dg.ErrValidation, err.Error())
	}
	if in.ReferralMultiplier == 0 {
		in.ReferralMultiplier = dg.DefaultReferralMultiplier
	}
	if in.MaxReferralMultiplier == 0 {
		in.MaxReferralMultiplier = max(dg.DefaultMaxReferralMultiplier, in.ReferralMultiplier)
	}
	if in.MaxReferralMultiplier < in.ReferralMultiplier {
		return nil, fmt.Errorf("%w: max_referral_multiplier must be >= referral_multiplier", dg.ErrValidation)
	}

	channels := make([]string, 0, len(in.RequiredChannels))
	for _, ch := range in.RequiredChannels {
		channels = append(channels, normalizeChannel(ch))
	}

	g := &dg.Giveaway{
		ID:                    uuid.NewString(),
		AdminID:               in.AdminID,
		Name:                  in.Name,
		Description:           in.Description,
		Status:                dg.StatusCreated,
		PrizesCount:           in.PrizesCount,
		MaxParticipants:       in.MaxParticipants,
		RequiredChannels:      channels,
		ReferralEnabled:       in.ReferralEnabled,
		ReferralMultiplier:    in.ReferralMultiplier,
		MaxReferralMultiplier: in.MaxReferralMultiplier,
		ChallengeEnabled:      in.ChallengeEnabled,
		CreatedAt:             s.now(),
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, dg.PersistenceError("create giveaway", err)
	}
	log.Info().Str("giveaway_id", g.ID).Int64("admin_id", g.AdminID).Msg("giveaway created")
	return g, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*dg.Giveaway, error) {
	if id == "" {
		return nil, dg.ErrNotFound
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, dg.PersistenceError("load giveaway", err)
	}
	return g, nil
}

// GetOwned returns the giveaway if requesterID administers it.
func (s *Service) GetOwned(ctx context.Context, id string, requesterID int64) (*dg.Giveaway, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requesterID == 0 {
		return nil, dg.ErrForbidden
	}
	if _, ok := s.superAdmins[requesterID]; ok {
		return g, nil
	}
	if g.AdminID != requesterID {
		return nil, dg.ErrForbidden
	}
	return g, nil
}

func (s *Service) ListByAdmin(ctx context.Context, adminID int64, limit, offset int) ([]dg.Giveaway, error) {
	if adminID == 0 {
		return nil, fmt.Errorf("%w: missing admin id", dg.ErrValidation)
	}
	list, err := s.repo.ListByAdmin(ctx, adminID, limit, offset)
	if err != nil {
		return nil, dg.PersistenceError("list giveaways", err)
	}
	return list, nil
}

// Publish makes a giveaway live now. A scheduled giveaway goes through the
// scheduler so its timer is disarmed.
func (s *Service) Publish(ctx context.Context, id string, requesterID int64) (*dg.Giveaway, error) {
	g, err := s.GetOwned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	switch g.Status {
	case dg.StatusScheduled:
		if s.scheduled == nil {
			return nil, fmt.Errorf("%w: scheduler unavailable", dg.ErrInvalidState)
		}
		if err := s.scheduled.Publish(ctx, id); err != nil {
			return nil, err
		}
		return s.GetByID(ctx, id)
	case dg.StatusCreated:
	default:
		return nil, fmt.Errorf("%w: cannot publish giveaway in status %s", dg.ErrInvalidState, g.Status)
	}

	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock giveaway %s: %w", id, err)
	}
	defer unlock()

	now := s.now()
	err = s.repo.TransitionStatus(ctx, id, dg.Transition{From: dg.StatusCreated, To: dg.StatusPublished, At: now})
	if errors.Is(err, dg.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: status changed concurrently", dg.ErrInvalidState)
	}
	if err != nil {
		return nil, dg.PersistenceError("publish giveaway", err)
	}
	g.Status = dg.StatusPublished
	g.PublishedAt = &now
	log.Info().Str("giveaway_id", id).Msg("giveaway published")

	if s.notifier != nil {
		if err := s.notifier.NotifyPublished(ctx, g); err != nil {
			log.Warn().Err(err).Str("giveaway_id", id).Msg("publish notification failed")
		}
	}
	return g, nil
}

// Delete removes a giveaway with its participants and winners. Scheduled
// giveaways must be cancelled first.
func (s *Service) Delete(ctx context.Context, id string, requesterID int64) error {
	if _, err := s.GetOwned(ctx, id, requesterID); err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, lock.GiveawayKey(id))
	if err != nil {
		return fmt.Errorf("lock giveaway %s: %w", id, err)
	}
	defer unlock()

	// re-read under the lock; the scheduler may have fired meanwhile
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.Status == dg.StatusScheduled {
		return fmt.Errorf("%w: cancel the schedule before deleting", dg.ErrInvalidState)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return dg.PersistenceError("delete giveaway", err)
	}
	log.Info().Str("giveaway_id", id).Msg("giveaway deleted")
	return nil
}

// Winners lists the winners ordered by place.
func (s *Service) Winners(ctx context.Context, id string) ([]dg.Winner, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.winners.List(ctx, id)
	if err != nil {
		return nil, dg.PersistenceError("list winners", err)
	}
	return list, nil
}

// UpdateWinner sets the bookkeeping flags of one winner.
func (s *Service) UpdateWinner(ctx context.Context, id string, requesterID, userID int64, f dg.WinnerFlags) error {
	if _, err := s.GetOwned(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.winners.UpdateFlags(ctx, id, userID, f); err != nil {
		if errors.Is(err, dg.ErrWinnerNotFound) {
			return err
		}
		return dg.PersistenceError("update winner", err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, id string, requesterID int64) (*dg.Stats, error) {
	if _, err := s.GetOwned(ctx, id, requesterID); err != nil {
		return nil, err
	}
	participants, err := s.participants.List(ctx, id)
	if err != nil {
		return nil, dg.PersistenceError("list participants", err)
	}
	winners, err := s.winners.List(ctx, id)
	if err != nil {
		return nil, dg.PersistenceError("list winners", err)
	}
	st := &dg.Stats{Participants: len(participants), Winners: len(winners)}
	for _, p := range participants {
		if p.ReferredBy != nil {
			st.ReferredParticipants++
		}
		st.TotalReferrals += p.ReferralCount
	}
	return st, nil
}

// normalizeChannel turns links and bare names into "@name"; numeric chat ids
// are kept as they are.
func normalizeChannel(ch string) string {
	ch = strings.TrimSpace(ch)
	ch = strings.TrimPrefix(ch, "https://t.me/")
	ch = strings.TrimPrefix(ch, "http://t.me/")
	ch = strings.TrimPrefix(ch, "t.me/")
	if ch == "" || strings.HasPrefix(ch, "@") || strings.HasPrefix(ch, "-") {
		return ch
	}
	if _, err := strconv.ParseInt(ch, 10, 64); err == nil {
		return ch
	}
	return "@" + ch
}
