package participation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/repository/sqlite"
)

type membership map[string]map[int64]bool

func (m membership) IsMember(_ context.Context, channel string, userID int64) (bool, error) {
	members, ok := m[channel]
	if !ok {
		return false, errors.New("chat not found")
	}
	return members[userID], nil
}

type env struct {
	giveaways    *sqlite.GiveawayRepository
	participants *sqlite.ParticipantRepository
	users        *sqlite.UserRepository
}

func newEnv(t *testing.T) env {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return env{
		giveaways:    sqlite.NewGiveawayRepository(db),
		participants: sqlite.NewParticipantRepository(db),
		users:        sqlite.NewUserRepository(db),
	}
}

func (e env) giveaway(t *testing.T, mutate func(*dg.Giveaway)) *dg.Giveaway {
	t.Helper()
	g := &dg.Giveaway{
		ID:                    uuid.NewString(),
		AdminID:               1,
		Name:                  "join",
		Status:                dg.StatusPublished,
		PrizesCount:           1,
		ReferralEnabled:       true,
		ReferralMultiplier:    1.5,
		MaxReferralMultiplier: 5,
		CreatedAt:             time.Now().UTC(),
	}
	if mutate != nil {
		mutate(g)
	}
	require.NoError(t, e.giveaways.Create(context.Background(), g))
	return g
}

func TestJoinWithReferral(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, nil)
	svc := NewService(e.giveaways, e.participants).WithUsers(e.users)

	_, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 10, Username: "ref", LanguageCode: "ru"})
	require.NoError(t, err)

	ref := int64(10)
	p, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 11, ReferrerID: &ref})
	require.NoError(t, err)
	require.NotNil(t, p.ReferredBy)
	assert.Equal(t, int64(10), *p.ReferredBy)

	referrer, err := e.participants.Get(ctx, g.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, referrer.ReferralCount)

	u, err := e.users.GetByID(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ru", u.LanguageCode)

	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 11})
	assert.ErrorIs(t, err, dg.ErrAlreadyParticipating)
}

func TestJoinIgnoresUnknownOrSelfReferrer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, nil)
	svc := NewService(e.giveaways, e.participants)

	stranger := int64(999)
	p, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 1, ReferrerID: &stranger})
	require.NoError(t, err)
	assert.Nil(t, p.ReferredBy)

	self := int64(2)
	p, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 2, ReferrerID: &self})
	require.NoError(t, err)
	assert.Nil(t, p.ReferredBy)
}

func TestJoinReferralDisabled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, func(g *dg.Giveaway) { g.ReferralEnabled = false })
	svc := NewService(e.giveaways, e.participants)

	_, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 1})
	require.NoError(t, err)
	ref := int64(1)
	p, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 2, ReferrerID: &ref})
	require.NoError(t, err)
	assert.Nil(t, p.ReferredBy)
}

func TestJoinStateAndCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := NewService(e.giveaways, e.participants)

	created := e.giveaway(t, func(g *dg.Giveaway) { g.Status = dg.StatusCreated })
	_, err := svc.Join(ctx, JoinInput{GiveawayID: created.ID, UserID: 1})
	assert.ErrorIs(t, err, dg.ErrInvalidState)

	_, err = svc.Join(ctx, JoinInput{GiveawayID: "missing", UserID: 1})
	assert.ErrorIs(t, err, dg.ErrNotFound)

	capped := e.giveaway(t, func(g *dg.Giveaway) { g.MaxParticipants = 1 })
	_, err = svc.Join(ctx, JoinInput{GiveawayID: capped.ID, UserID: 1})
	require.NoError(t, err)
	_, err = svc.Join(ctx, JoinInput{GiveawayID: capped.ID, UserID: 2})
	assert.ErrorIs(t, err, dg.ErrGiveawayFull)

	_, err = svc.Join(ctx, JoinInput{GiveawayID: capped.ID})
	assert.ErrorIs(t, err, dg.ErrValidation)
}

func TestJoinRequiresChannels(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, func(g *dg.Giveaway) { g.RequiredChannels = []string{"@news", "@chat"} })

	_, err := NewService(e.giveaways, e.participants).Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 1})
	assert.ErrorIs(t, err, dg.ErrNotSubscribed)

	m := membership{"@news": {1: true, 2: true}, "@chat": {1: true}}
	svc := NewService(e.giveaways, e.participants).WithMembership(m)
	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 1})
	require.NoError(t, err)
	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 2})
	assert.ErrorIs(t, err, dg.ErrNotSubscribed)

	broken := e.giveaway(t, func(g *dg.Giveaway) { g.RequiredChannels = []string{"@gone"} })
	_, err = svc.Join(ctx, JoinInput{GiveawayID: broken.ID, UserID: 1})
	assert.ErrorIs(t, err, dg.ErrNotSubscribed)
}

type gate struct {
	passed   map[int64]bool
	consumed []int64
}

func (g *gate) Passed(userID int64, _ string) bool { return g.passed[userID] }

func (g *gate) Consume(userID int64, _ string) bool {
	if !g.passed[userID] {
		return false
	}
	delete(g.passed, userID)
	g.consumed = append(g.consumed, userID)
	return true
}

func TestJoinRequiresChallenge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, func(g *dg.Giveaway) { g.ChallengeEnabled = true })

	_, err := NewService(e.giveaways, e.participants).Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 5})
	assert.ErrorIs(t, err, dg.ErrChallengeRequired)

	gt := &gate{passed: map[int64]bool{5: true}}
	svc := NewService(e.giveaways, e.participants).WithChallenges(gt)

	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 6})
	assert.ErrorIs(t, err, dg.ErrChallengeRequired)

	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, gt.consumed)

	n, err := svc.Count(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJoinKeepsPassOnFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	g := e.giveaway(t, func(g *dg.Giveaway) {
		g.ChallengeEnabled = true
		g.MaxParticipants = 1
	})
	gt := &gate{passed: map[int64]bool{1: true, 2: true}}
	svc := NewService(e.giveaways, e.participants).WithChallenges(gt)

	_, err := svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 1})
	require.NoError(t, err)
	_, err = svc.Join(ctx, JoinInput{GiveawayID: g.ID, UserID: 2})
	assert.ErrorIs(t, err, dg.ErrGiveawayFull)
	assert.True(t, gt.passed[2])
}
