package giveaway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/repository/sqlite"
)

type stores struct {
	giveaways    *sqlite.GiveawayRepository
	participants *sqlite.ParticipantRepository
	winners      *sqlite.WinnerRepository
}

func newService(t *testing.T) (*Service, stores) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	st := stores{
		giveaways:    sqlite.NewGiveawayRepository(db),
		participants: sqlite.NewParticipantRepository(db),
		winners:      sqlite.NewWinnerRepository(db),
	}
	return NewService(st.giveaways, st.participants, st.winners, nil), st
}

type publishRecorder struct {
	repo dg.Repository
	ids  []string
	err  error
}

func (p *publishRecorder) Publish(ctx context.Context, id string) error {
	p.ids = append(p.ids, id)
	if p.err != nil {
		return p.err
	}
	return p.repo.TransitionStatus(ctx, id, dg.Transition{From: dg.StatusScheduled, To: dg.StatusPublished, At: time.Now().UTC()})
}

type adminNotifier struct {
	published []string
	err       error
}

func (n *adminNotifier) NotifyPublished(_ context.Context, g *dg.Giveaway) error {
	n.published = append(n.published, g.ID)
	return n.err
}

func validInput() CreateInput {
	return CreateInput{AdminID: 7, Name: "  Launch  ", PrizesCount: 2, ReferralEnabled: true}
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newService(t)
	in := validInput()
	in.RequiredChannels = []string{"https://t.me/news", "chat", "@ok", "-100123"}

	g, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "Launch", g.Name)
	assert.Equal(t, dg.StatusCreated, g.Status)
	assert.Equal(t, dg.DefaultReferralMultiplier, g.ReferralMultiplier)
	assert.Equal(t, dg.DefaultMaxReferralMultiplier, g.MaxReferralMultiplier)
	assert.Equal(t, []string{"@news", "@chat", "@ok", "-100123"}, g.RequiredChannels)

	stored, err := svc.GetByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.RequiredChannels, stored.RequiredChannels)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	cases := map[string]func(*CreateInput){
		"no admin":       func(in *CreateInput) { in.AdminID = 0 },
		"blank name":     func(in *CreateInput) { in.Name = "   " },
		"zero prizes":    func(in *CreateInput) { in.PrizesCount = 0 },
		"negative cap":   func(in *CreateInput) { in.MaxParticipants = -1 },
		"low multiplier": func(in *CreateInput) { in.ReferralMultiplier = 0.5 },
		"max below multiplier": func(in *CreateInput) {
			in.ReferralMultiplier = 3
			in.MaxReferralMultiplier = 2
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(context.Background(), in)
			assert.ErrorIs(t, err, dg.ErrValidation)
		})
	}
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	g, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.GetOwned(ctx, g.ID, 8)
	assert.ErrorIs(t, err, dg.ErrForbidden)
	_, err = svc.GetOwned(ctx, "missing", 7)
	assert.ErrorIs(t, err, dg.ErrNotFound)
	_, err = svc.Publish(ctx, g.ID, 8)
	assert.ErrorIs(t, err, dg.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, g.ID, 8), dg.ErrForbidden)

	svc.WithSuperAdmins(map[int64]struct{}{99: {}})
	_, err = svc.GetOwned(ctx, g.ID, 99)
	assert.NoError(t, err)
	_, err = svc.GetOwned(ctx, g.ID, 0)
	assert.ErrorIs(t, err, dg.ErrForbidden)

	list, err := svc.ListByAdmin(ctx, 7, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = svc.ListByAdmin(ctx, 0, 10, 0)
	assert.ErrorIs(t, err, dg.ErrValidation)
}

func TestPublishCreated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	n := &adminNotifier{err: errors.New("bot blocked")}
	svc.WithNotifier(n)

	g, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	published, err := svc.Publish(ctx, g.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, dg.StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, []string{g.ID}, n.published)

	_, err = svc.Publish(ctx, g.ID, 7)
	assert.ErrorIs(t, err, dg.ErrInvalidState)
}

func TestPublishScheduledGoesThroughScheduler(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	g, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	at := time.Now().Add(time.Hour).UTC()
	require.NoError(t, st.giveaways.TransitionStatus(ctx, g.ID, dg.Transition{
		From: dg.StatusCreated, To: dg.StatusScheduled, ScheduledPublish: &at,
	}))

	_, err = svc.Publish(ctx, g.ID, 7)
	assert.ErrorIs(t, err, dg.ErrInvalidState, "no scheduler wired")

	rec := &publishRecorder{repo: st.giveaways}
	svc.WithScheduler(rec)
	published, err := svc.Publish(ctx, g.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, rec.ids)
	assert.Equal(t, dg.StatusPublished, published.Status)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	g, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	at := time.Now().Add(time.Hour).UTC()
	require.NoError(t, st.giveaways.TransitionStatus(ctx, g.ID, dg.Transition{
		From: dg.StatusCreated, To: dg.StatusScheduled, ScheduledPublish: &at,
	}))
	assert.ErrorIs(t, svc.Delete(ctx, g.ID, 7), dg.ErrInvalidState)

	require.NoError(t, st.giveaways.TransitionStatus(ctx, g.ID, dg.Transition{From: dg.StatusScheduled, To: dg.StatusCreated}))
	require.NoError(t, svc.Delete(ctx, g.ID, 7))
	_, err = svc.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, dg.ErrNotFound)
}

func TestWinnersAndStats(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	g, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Publish(ctx, g.ID, 7)
	require.NoError(t, err)

	now := time.Now().UTC()
	ref := int64(100)
	for _, p := range []dg.Participant{
		{GiveawayID: g.ID, UserID: 100, JoinedAt: now},
		{GiveawayID: g.ID, UserID: 101, ReferredBy: &ref, JoinedAt: now},
		{GiveawayID: g.ID, UserID: 102, ReferredBy: &ref, JoinedAt: now},
	} {
		p := p
		require.NoError(t, st.participants.Add(ctx, &p))
	}
	require.NoError(t, st.winners.CommitDraw(ctx, g.ID, []dg.Winner{
		{GiveawayID: g.ID, UserID: 101, Place: 1, SelectedAt: now},
		{GiveawayID: g.ID, UserID: 100, Place: 2, SelectedAt: now},
	}, now))

	stats, err := svc.Stats(ctx, g.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, dg.Stats{Participants: 3, ReferredParticipants: 2, TotalReferrals: 2, Winners: 2}, *stats)

	yes := true
	require.NoError(t, svc.UpdateWinner(ctx, g.ID, 7, 100, dg.WinnerFlags{PrizeSent: &yes}))
	assert.ErrorIs(t, svc.UpdateWinner(ctx, g.ID, 7, 102, dg.WinnerFlags{PrizeSent: &yes}), dg.ErrWinnerNotFound)

	winners, err := svc.Winners(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, int64(101), winners[0].UserID)
	assert.True(t, winners[1].PrizeSent)
	assert.False(t, winners[1].DataCollected)
}
