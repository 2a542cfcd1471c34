package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `giveaway_id, user_id, username, first_name, last_name, referred_by, referral_count, joined_at`

func scanParticipant(row rowScanner) (*dg.Participant, error) {
	var (
		p   dg.Participant
		ref sql.NullInt64
	)
	if err := row.Scan(&p.GiveawayID, &p.UserID, &p.Username, &p.FirstName, &p.LastName, &ref, &p.ReferralCount, &p.JoinedAt); err != nil {
		return nil, err
	}
	if ref.Valid {
		v := ref.Int64
		p.ReferredBy = &v
	}
	p.JoinedAt = p.JoinedAt.UTC()
	return &p, nil
}

// Add locks the giveaway row so the status and cap checks hold until commit.
func (r *ParticipantRepository) Add(ctx context.Context, p *dg.Participant) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			status string
			limit  int
		)
		err := tx.QueryRowContext(ctx, `SELECT status, max_participants FROM giveaways WHERE id=$1 FOR UPDATE`, p.GiveawayID).Scan(&status, &limit)
		if errors.Is(err, sql.ErrNoRows) {
			return dg.ErrNotFound
		}
		if err != nil {
			return err
		}
		if dg.Status(status) != dg.StatusPublished {
			return dg.ErrInvalidState
		}
		if limit > 0 {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE giveaway_id=$1`, p.GiveawayID).Scan(&n); err != nil {
				return err
			}
			if n >= limit {
				return dg.ErrGiveawayFull
			}
		}

		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO participants (`+participantColumns+`) VALUES ($1,$2,$3,$4,$5,$6,0,$7)`,
			p.GiveawayID, p.UserID, p.Username, p.FirstName, p.LastName, p.ReferredBy, p.JoinedAt)
		if isUniqueViolation(err, "") {
			return dg.ErrAlreadyParticipating
		}
		if err != nil {
			return err
		}

		if p.ReferredBy != nil && *p.ReferredBy != p.UserID {
			_, err := tx.ExecContext(ctx,
				`UPDATE participants SET referral_count = referral_count + 1 WHERE giveaway_id=$1 AND user_id=$2`,
				p.GiveawayID, *p.ReferredBy)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ParticipantRepository) Get(ctx context.Context, giveawayID string, userID int64) (*dg.Participant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE giveaway_id=$1 AND user_id=$2`, giveawayID, userID)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dg.ErrParticipantNotFound
	}
	return p, err
}

func (r *ParticipantRepository) List(ctx context.Context, giveawayID string) ([]dg.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE giveaway_id=$1 ORDER BY joined_at ASC, id ASC`, giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]dg.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ParticipantRepository) Count(ctx context.Context, giveawayID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE giveaway_id=$1`, giveawayID).Scan(&n)
	return n, err
}
