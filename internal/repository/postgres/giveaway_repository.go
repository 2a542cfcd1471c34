package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

// GiveawayRepository persists giveaways in Postgres.
type GiveawayRepository struct {
	db *sql.DB
}

func NewGiveawayRepository(db *sql.DB) *GiveawayRepository { return &GiveawayRepository{db: db} }

const giveawayColumns = `id, admin_id, name, description, status, prizes_count, max_participants,
	required_channels, referral_enabled, referral_multiplier, max_referral_multiplier, challenge_enabled,
	scheduled_publish, created_at, published_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(row rowScanner) (*dg.Giveaway, error) {
	var (
		g                                dg.Giveaway
		status                           string
		channels                         pq.StringArray
		scheduled, published, finishedAt sql.NullTime
	)
	err := row.Scan(&g.ID, &g.AdminID, &g.Name, &g.Description, &status, &g.PrizesCount, &g.MaxParticipants,
		&channels, &g.ReferralEnabled, &g.ReferralMultiplier, &g.MaxReferralMultiplier, &g.ChallengeEnabled,
		&scheduled, &g.CreatedAt, &published, &finishedAt)
	if err != nil {
		return nil, err
	}
	g.Status = dg.Status(status)
	g.RequiredChannels = []string(channels)
	g.ScheduledPublish = timePtr(scheduled)
	g.PublishedAt = timePtr(published)
	g.FinishedAt = timePtr(finishedAt)
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

func (r *GiveawayRepository) Create(ctx context.Context, g *dg.Giveaway) error {
	const q = `
	INSERT INTO giveaways (` + giveawayColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	channels := g.RequiredChannels
	if channels == nil {
		channels = []string{}
	}
	_, err := r.db.ExecContext(ctx, q,
		g.ID, g.AdminID, g.Name, g.Description, string(g.Status), g.PrizesCount, g.MaxParticipants,
		pq.Array(channels), g.ReferralEnabled, g.ReferralMultiplier, g.MaxReferralMultiplier, g.ChallengeEnabled,
		g.ScheduledPublish, g.CreatedAt, g.PublishedAt, g.FinishedAt,
	)
	return err
}

func (r *GiveawayRepository) GetByID(ctx context.Context, id string) (*dg.Giveaway, error) {
	q := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE id=$1`
	g, err := scanGiveaway(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dg.ErrNotFound
	}
	return g, err
}

func (r *GiveawayRepository) ListByAdmin(ctx context.Context, adminID int64, limit, offset int) ([]dg.Giveaway, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE admin_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, q, adminID, limit, offset)
}

func (r *GiveawayRepository) ListByStatus(ctx context.Context, status dg.Status) ([]dg.Giveaway, error) {
	q := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE status=$1 ORDER BY created_at ASC`
	return r.list(ctx, q, string(status))
}

func (r *GiveawayRepository) list(ctx context.Context, q string, args ...any) ([]dg.Giveaway, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]dg.Giveaway, 0)
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (r *GiveawayRepository) TransitionStatus(ctx context.Context, id string, t dg.Transition) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return transition(ctx, tx, id, t)
	})
}

// Delete relies on ON DELETE CASCADE for participants and winners.
func (r *GiveawayRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM giveaways WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dg.ErrNotFound
	}
	return nil
}

// transition applies a conditional status update inside tx.
func transition(ctx context.Context, tx *sql.Tx, id string, t dg.Transition) error {
	var (
		q    string
		args []any
	)
	switch t.To {
	case dg.StatusScheduled:
		q = `UPDATE giveaways SET status=$1, scheduled_publish=$2 WHERE id=$3 AND status=$4`
		args = []any{string(t.To), t.ScheduledPublish, id, string(t.From)}
	case dg.StatusCreated:
		q = `UPDATE giveaways SET status=$1, scheduled_publish=NULL WHERE id=$2 AND status=$3`
		args = []any{string(t.To), id, string(t.From)}
	case dg.StatusPublished:
		q = `UPDATE giveaways SET status=$1, scheduled_publish=NULL, published_at=$2 WHERE id=$3 AND status=$4`
		args = []any{string(t.To), t.At, id, string(t.From)}
	case dg.StatusFinished:
		q = `UPDATE giveaways SET status=$1, finished_at=$2 WHERE id=$3 AND status=$4`
		args = []any{string(t.To), t.At, id, string(t.From)}
	default:
		return dg.ErrStatusConflict
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM giveaways WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return dg.ErrNotFound
	}
	return dg.ErrStatusConflict
}
