package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type recorder struct {
	calls []string
	at    time.Time
	owner int64
}

func (r *recorder) DrawWinners(_ context.Context, id string) ([]dg.Winner, error) {
	r.calls = append(r.calls, "draw:"+id)
	return []dg.Winner{{GiveawayID: id, UserID: 1, Place: 1}}, nil
}

func (r *recorder) Redraw(_ context.Context, id string) ([]dg.Winner, error) {
	r.calls = append(r.calls, "redraw:"+id)
	return nil, dg.ErrInvalidState
}

func (r *recorder) Publish(_ context.Context, id string, requester int64) (*dg.Giveaway, error) {
	if requester != r.owner {
		return nil, dg.ErrForbidden
	}
	r.calls = append(r.calls, "publish:"+id)
	return &dg.Giveaway{ID: id, Status: dg.StatusPublished}, nil
}

func (r *recorder) GetOwned(_ context.Context, id string, requester int64) (*dg.Giveaway, error) {
	if requester != r.owner {
		return nil, dg.ErrForbidden
	}
	return &dg.Giveaway{ID: id, AdminID: requester}, nil
}

func (r *recorder) Schedule(_ context.Context, id string, at time.Time) error {
	r.calls = append(r.calls, "schedule:"+id)
	r.at = at
	return nil
}

func (r *recorder) Cancel(_ context.Context, id string) error {
	r.calls = append(r.calls, "cancel:"+id)
	return dg.ErrNotScheduled
}

func newWorker() (*RedisStreamWorker, *recorder) {
	r := &recorder{owner: 7}
	return NewRedisStreamWorker(nil, StreamConfig{}, r, r, r), r
}

func msg(kv ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func TestProcessMessageDispatch(t *testing.T) {
	ctx := context.Background()
	w, r := newWorker()

	require.NoError(t, w.processMessage(ctx, msg("type", "draw", "giveaway_id", "g1", "admin_id", "7")))
	require.NoError(t, w.processMessage(ctx, msg("type", "publish", "giveaway_id", "g2", "admin_id", "7")))
	require.NoError(t, w.processMessage(ctx, msg("type", "schedule", "giveaway_id", "g3", "admin_id", "7", "publish_at", "2030-01-02T15:04:05Z")))
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "redraw", "giveaway_id", "g4", "admin_id", "7")), dg.ErrInvalidState)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "cancel_schedule", "giveaway_id", "g5", "admin_id", "7")), dg.ErrNotScheduled)

	assert.Equal(t, []string{"draw:g1", "publish:g2", "schedule:g3", "redraw:g4", "cancel:g5"}, r.calls)
	assert.Equal(t, time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC), r.at)
}

func TestProcessMessageRejects(t *testing.T) {
	ctx := context.Background()
	w, r := newWorker()

	assert.ErrorIs(t, w.processMessage(ctx, msg("giveaway_id", "g1", "admin_id", "7")), dg.ErrValidation)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "draw", "giveaway_id", "g1")), dg.ErrValidation)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "draw", "giveaway_id", "g1", "admin_id", "abc")), dg.ErrValidation)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "launch", "giveaway_id", "g1", "admin_id", "7")), dg.ErrValidation)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "draw", "giveaway_id", "g1", "admin_id", "8")), dg.ErrForbidden)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "publish", "giveaway_id", "g1", "admin_id", "8")), dg.ErrForbidden)
	assert.ErrorIs(t, w.processMessage(ctx, msg("type", "schedule", "giveaway_id", "g1", "admin_id", "7", "publish_at", "tomorrow")), dg.ErrInvalidTime)
	assert.Empty(t, r.calls)
}
