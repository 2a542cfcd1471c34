package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type GiveawayRepository struct {
	db *gorm.DB
}

func NewGiveawayRepository(db *gorm.DB) *GiveawayRepository { return &GiveawayRepository{db: db} }

func (r *GiveawayRepository) Create(ctx context.Context, g *dg.Giveaway) error {
	rec := toGiveawayRecord(g)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *GiveawayRepository) GetByID(ctx context.Context, id string) (*dg.Giveaway, error) {
	var rec giveawayRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dg.ErrNotFound
		}
		return nil, err
	}
	g := rec.toDomain()
	return &g, nil
}

func (r *GiveawayRepository) ListByAdmin(ctx context.Context, adminID int64, limit, offset int) ([]dg.Giveaway, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var recs []giveawayRecord
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", adminID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toGiveaways(recs), nil
}

func (r *GiveawayRepository) ListByStatus(ctx context.Context, status dg.Status) ([]dg.Giveaway, error) {
	var recs []giveawayRecord
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toGiveaways(recs), nil
}

func (r *GiveawayRepository) TransitionStatus(ctx context.Context, id string, t dg.Transition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transition(tx, id, t)
	})
}

func (r *GiveawayRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("giveaway_id = ?", id).Delete(&winnerRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("giveaway_id = ?", id).Delete(&participantRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&giveawayRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return dg.ErrNotFound
		}
		return nil
	})
}

// transition applies a conditional status update inside tx.
func transition(tx *gorm.DB, id string, t dg.Transition) error {
	updates := map[string]any{"status": string(t.To)}
	switch t.To {
	case dg.StatusScheduled:
		updates["scheduled_publish"] = t.ScheduledPublish
	case dg.StatusCreated:
		updates["scheduled_publish"] = nil
	case dg.StatusPublished:
		updates["scheduled_publish"] = nil
		updates["published_at"] = t.At
	case dg.StatusFinished:
		updates["finished_at"] = t.At
	}
	res := tx.Model(&giveawayRecord{}).
		Where("id = ? AND status = ?", id, string(t.From)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := tx.Model(&giveawayRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return dg.ErrNotFound
	}
	return dg.ErrStatusConflict
}

func toGiveaways(recs []giveawayRecord) []dg.Giveaway {
	out := make([]dg.Giveaway, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out
}
