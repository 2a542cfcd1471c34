package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Upsert(ctx context.Context, u *du.User) error {
	now := time.Now().UTC()
	rec := userRecord{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		IsPremium:    u.IsPremium,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    now,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "language_code", "is_premium", "updated_at"}),
	}).Create(&rec).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*du.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec.toDomain(), nil
}
