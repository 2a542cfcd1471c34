package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Add(ctx context.Context, p *dg.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g giveawayRecord
		if err := tx.Select("id", "status", "max_participants").Where("id = ?", p.GiveawayID).Take(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dg.ErrNotFound
			}
			return err
		}
		if dg.Status(g.Status) != dg.StatusPublished {
			return dg.ErrInvalidState
		}

		var exists int64
		if err := tx.Model(&participantRecord{}).Where("giveaway_id = ? AND user_id = ?", p.GiveawayID, p.UserID).Count(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return dg.ErrAlreadyParticipating
		}
		if g.MaxParticipants > 0 {
			var n int64
			if err := tx.Model(&participantRecord{}).Where("giveaway_id = ?", p.GiveawayID).Count(&n).Error; err != nil {
				return err
			}
			if n >= int64(g.MaxParticipants) {
				return dg.ErrGiveawayFull
			}
		}

		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now().UTC()
		}
		rec := participantRecord{
			GiveawayID: p.GiveawayID,
			UserID:     p.UserID,
			Username:   p.Username,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			ReferredBy: p.ReferredBy,
			JoinedAt:   p.JoinedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return dg.ErrAlreadyParticipating
			}
			return err
		}

		if p.ReferredBy != nil && *p.ReferredBy != p.UserID {
			err := tx.Model(&participantRecord{}).
				Where("giveaway_id = ? AND user_id = ?", p.GiveawayID, *p.ReferredBy).
				UpdateColumn("referral_count", gorm.Expr("referral_count + 1")).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ParticipantRepository) Get(ctx context.Context, giveawayID string, userID int64) (*dg.Participant, error) {
	var rec participantRecord
	err := r.db.WithContext(ctx).Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dg.ErrParticipantNotFound
		}
		return nil, err
	}
	p := rec.toDomain()
	return &p, nil
}

func (r *ParticipantRepository) List(ctx context.Context, giveawayID string) ([]dg.Participant, error) {
	var recs []participantRecord
	if err := r.db.WithContext(ctx).Where("giveaway_id = ?", giveawayID).Order("joined_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]dg.Participant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *ParticipantRepository) Count(ctx context.Context, giveawayID string) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&participantRecord{}).Where("giveaway_id = ?", giveawayID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
