package user

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	domain "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

// Cache is the read-through layer in front of the repository.
type Cache interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Set(ctx context.Context, u *domain.User) error
	Invalidate(ctx context.Context, id int64) error
}

// Service orchestrates user access with repository and cache.
type Service struct {
	repo  domain.Repository
	cache Cache
}

func NewService(repo domain.Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if s.cache != nil {
		if u, err := s.cache.GetByID(ctx, id); err == nil && u != nil {
			return u, nil
		} else if err != nil {
			log.Debug().Err(err).Int64("user_id", id).Msg("user cache read failed")
		}
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, u)
	}
	return u, nil
}

func (s *Service) Upsert(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if err := s.repo.Upsert(ctx, u); err != nil {
		return err
	}
	if s.cache != nil {
		// stored row may keep an older created_at; drop instead of overwrite
		if err := s.cache.Invalidate(ctx, u.ID); err != nil {
			log.Warn().Err(err).Int64("user_id", u.ID).Msg("user cache invalidate failed")
		}
	}
	return nil
}
