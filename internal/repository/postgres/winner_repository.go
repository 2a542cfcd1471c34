package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type WinnerRepository struct {
	db *sql.DB
}

func NewWinnerRepository(db *sql.DB) *WinnerRepository { return &WinnerRepository{db: db} }

func (r *WinnerRepository) CommitDraw(ctx context.Context, giveawayID string, winners []dg.Winner, finishedAt time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := transition(ctx, tx, giveawayID, dg.Transition{From: dg.StatusPublished, To: dg.StatusFinished, At: finishedAt}); err != nil {
			return err
		}
		return insertWinners(ctx, tx, giveawayID, winners)
	})
}

func (r *WinnerRepository) ReplaceWinners(ctx context.Context, giveawayID string, winners []dg.Winner, finishedAt time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := transition(ctx, tx, giveawayID, dg.Transition{From: dg.StatusFinished, To: dg.StatusFinished, At: finishedAt}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM winners WHERE giveaway_id=$1`, giveawayID); err != nil {
			return err
		}
		return insertWinners(ctx, tx, giveawayID, winners)
	})
}

func (r *WinnerRepository) List(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	const q = `SELECT giveaway_id, user_id, place, data_collected, prize_sent, selected_at FROM winners WHERE giveaway_id=$1 ORDER BY place ASC`
	rows, err := r.db.QueryContext(ctx, q, giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]dg.Winner, 0)
	for rows.Next() {
		var w dg.Winner
		if err := rows.Scan(&w.GiveawayID, &w.UserID, &w.Place, &w.DataCollected, &w.PrizeSent, &w.SelectedAt); err != nil {
			return nil, err
		}
		w.SelectedAt = w.SelectedAt.UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WinnerRepository) UpdateFlags(ctx context.Context, giveawayID string, userID int64, f dg.WinnerFlags) error {
	const q = `
	UPDATE winners SET
		data_collected = COALESCE($3, data_collected),
		prize_sent = COALESCE($4, prize_sent)
	WHERE giveaway_id=$1 AND user_id=$2`
	res, err := r.db.ExecContext(ctx, q, giveawayID, userID, f.DataCollected, f.PrizeSent)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dg.ErrWinnerNotFound
	}
	return nil
}

// insertWinners writes the batch with a single multi-row INSERT.
func insertWinners(ctx context.Context, tx *sql.Tx, giveawayID string, winners []dg.Winner) error {
	if len(winners) == 0 {
		return nil
	}
	var (
		b    strings.Builder
		args = make([]any, 0, len(winners)*4)
	)
	b.WriteString(`INSERT INTO winners (giveaway_id, user_id, place, selected_at) VALUES `)
	for i, w := range winners {
		if i > 0 {
			b.WriteString(",")
		}
		n := i * 4
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4)
		args = append(args, giveawayID, w.UserID, w.Place, w.SelectedAt)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}
