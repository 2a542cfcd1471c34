package participation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

// MembershipChecker answers whether a user belongs to a channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// ChallengeGate tracks who passed the bot challenge.
type ChallengeGate interface {
	Passed(userID int64, giveawayID string) bool
	Consume(userID int64, giveawayID string) bool
}

// UserRecorder stores the profile of users seen joining.
type UserRecorder interface {
	Upsert(ctx context.Context, u *du.User) error
}

// JoinInput identifies the joining user and an optional referrer.
type JoinInput struct {
	GiveawayID   string
	UserID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	IsPremium    bool
	ReferrerID   *int64
}

type Service struct {
	giveaways    dg.Repository
	participants dg.ParticipantRepository
	membership   MembershipChecker
	challenges   ChallengeGate
	users        UserRecorder
	now          func() time.Time
}

func NewService(giveaways dg.Repository, participants dg.ParticipantRepository) *Service {
	return &Service{
		giveaways:    giveaways,
		participants: participants,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithMembership(m MembershipChecker) *Service {
	s.membership = m
	return s
}

func (s *Service) WithChallenges(c ChallengeGate) *Service {
	s.challenges = c
	return s
}

func (s *Service) WithUsers(u UserRecorder) *Service {
	s.users = u
	return s
}

// Join enters the user into a published giveaway.
func (s *Service) Join(ctx context.Context, in JoinInput) (*dg.Participant, error) {
	if in.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", dg.ErrValidation)
	}
	g, err := s.giveaways.GetByID(ctx, in.GiveawayID)
	if err != nil {
		return nil, dg.PersistenceError("load giveaway", err)
	}
	if g.Status != dg.StatusPublished {
		return nil, fmt.Errorf("%w: giveaway is %s", dg.ErrInvalidState, g.Status)
	}
	if _, err := s.participants.Get(ctx, g.ID, in.UserID); err == nil {
		return nil, dg.ErrAlreadyParticipating
	} else if !errors.Is(err, dg.ErrParticipantNotFound) {
		return nil, dg.PersistenceError("load participant", err)
	}

	if err := s.checkChannels(ctx, g, in.UserID); err != nil {
		return nil, err
	}
	if g.ChallengeEnabled && (s.challenges == nil || !s.challenges.Passed(in.UserID, g.ID)) {
		return nil, dg.ErrChallengeRequired
	}

	p := &dg.Participant{
		GiveawayID: g.ID,
		UserID:     in.UserID,
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		ReferredBy: s.referrer(ctx, g, in),
		JoinedAt:   s.now(),
	}
	if err := s.participants.Add(ctx, p); err != nil {
		switch {
		case errors.Is(err, dg.ErrAlreadyParticipating), errors.Is(err, dg.ErrGiveawayFull):
			return nil, err
		case errors.Is(err, dg.ErrInvalidState):
			return nil, fmt.Errorf("%w: giveaway is no longer open", dg.ErrInvalidState)
		default:
			return nil, dg.PersistenceError("add participant", err)
		}
	}
	if g.ChallengeEnabled {
		s.challenges.Consume(in.UserID, g.ID)
	}

	if s.users != nil {
		u := &du.User{
			ID:           in.UserID,
			Username:     in.Username,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			LanguageCode: in.LanguageCode,
			IsPremium:    in.IsPremium,
		}
		if err := s.users.Upsert(ctx, u); err != nil {
			log.Warn().Err(err).Int64("user_id", in.UserID).Msg("user upsert failed")
		}
	}
	log.Info().Str("giveaway_id", g.ID).Int64("user_id", in.UserID).Msg("participant joined")
	return p, nil
}

func (s *Service) List(ctx context.Context, giveawayID string) ([]dg.Participant, error) {
	list, err := s.participants.List(ctx, giveawayID)
	if err != nil {
		return nil, dg.PersistenceError("list participants", err)
	}
	return list, nil
}

func (s *Service) Count(ctx context.Context, giveawayID string) (int, error) {
	n, err := s.participants.Count(ctx, giveawayID)
	if err != nil {
		return 0, dg.PersistenceError("count participants", err)
	}
	return n, nil
}

// checkChannels requires membership in every channel of the giveaway. A
// failed lookup counts as not subscribed.
func (s *Service) checkChannels(ctx context.Context, g *dg.Giveaway, userID int64) error {
	if len(g.RequiredChannels) == 0 {
		return nil
	}
	if s.membership == nil {
		return fmt.Errorf("%w: membership lookup unavailable", dg.ErrNotSubscribed)
	}
	for _, ch := range g.RequiredChannels {
		ok, err := s.membership.IsMember(ctx, ch, userID)
		if err != nil {
			log.Warn().Err(err).Str("channel", ch).Int64("user_id", userID).Msg("membership lookup failed")
		}
		if err != nil || !ok {
			return fmt.Errorf("%w: %s", dg.ErrNotSubscribed, ch)
		}
	}
	return nil
}

// referrer keeps the referrer only when referrals are on and the referrer
// already participates.
func (s *Service) referrer(ctx context.Context, g *dg.Giveaway, in JoinInput) *int64 {
	if !g.ReferralEnabled || in.ReferrerID == nil || *in.ReferrerID == in.UserID || *in.ReferrerID == 0 {
		return nil
	}
	if _, err := s.participants.Get(ctx, g.ID, *in.ReferrerID); err != nil {
		log.Debug().Err(err).Int64("referrer_id", *in.ReferrerID).Str("giveaway_id", g.ID).Msg("referrer ignored")
		return nil
	}
	ref := *in.ReferrerID
	return &ref
}
