package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type WinnerRepository struct {
	db *gorm.DB
}

func NewWinnerRepository(db *gorm.DB) *WinnerRepository { return &WinnerRepository{db: db} }

func (r *WinnerRepository) CommitDraw(ctx context.Context, giveawayID string, winners []dg.Winner, finishedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertWinners(tx, giveawayID, winners); err != nil {
			return err
		}
		return transition(tx, giveawayID, dg.Transition{From: dg.StatusPublished, To: dg.StatusFinished, At: finishedAt})
	})
}

func (r *WinnerRepository) ReplaceWinners(ctx context.Context, giveawayID string, winners []dg.Winner, finishedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, giveawayID, dg.Transition{From: dg.StatusFinished, To: dg.StatusFinished, At: finishedAt}); err != nil {
			return err
		}
		if err := tx.Where("giveaway_id = ?", giveawayID).Delete(&winnerRecord{}).Error; err != nil {
			return err
		}
		return insertWinners(tx, giveawayID, winners)
	})
}

func (r *WinnerRepository) List(ctx context.Context, giveawayID string) ([]dg.Winner, error) {
	var recs []winnerRecord
	if err := r.db.WithContext(ctx).Where("giveaway_id = ?", giveawayID).Order("place ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]dg.Winner, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *WinnerRepository) UpdateFlags(ctx context.Context, giveawayID string, userID int64, f dg.WinnerFlags) error {
	updates := map[string]any{}
	if f.DataCollected != nil {
		updates["data_collected"] = *f.DataCollected
	}
	if f.PrizeSent != nil {
		updates["prize_sent"] = *f.PrizeSent
	}
	q := r.db.WithContext(ctx).Model(&winnerRecord{}).Where("giveaway_id = ? AND user_id = ?", giveawayID, userID)
	if len(updates) == 0 {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return dg.ErrWinnerNotFound
		}
		return nil
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dg.ErrWinnerNotFound
	}
	return nil
}

func insertWinners(tx *gorm.DB, giveawayID string, winners []dg.Winner) error {
	if len(winners) == 0 {
		return nil
	}
	recs := make([]winnerRecord, 0, len(winners))
	for _, w := range winners {
		recs = append(recs, winnerRecord{
			GiveawayID: giveawayID,
			UserID:     w.UserID,
			Place:      w.Place,
			SelectedAt: w.SelectedAt,
		})
	}
	return tx.Create(&recs).Error
}
