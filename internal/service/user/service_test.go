package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

type memRepo struct {
	users map[int64]domain.User
	reads int
}

func (r *memRepo) Upsert(_ context.Context, u *domain.User) error {
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.reads++
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type memCache struct {
	users map[int64]domain.User
	err   error
}

func (c *memCache) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if c.err != nil {
		return nil, c.err
	}
	u, ok := c.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (c *memCache) Set(_ context.Context, u *domain.User) error {
	c.users[u.ID] = *u
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id int64) error {
	delete(c.users, id)
	return nil
}

func TestGetByIDReadsThrough(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{users: map[int64]domain.User{1: {ID: 1, Username: "alice"}}}
	cache := &memCache{users: map[int64]domain.User{}}
	svc := NewService(repo, cache)

	u, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Contains(t, cache.users, int64(1))

	_, err = svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	u, err = svc.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetByIDSurvivesCacheErrors(t *testing.T) {
	repo := &memRepo{users: map[int64]domain.User{1: {ID: 1}}}
	cache := &memCache{users: map[int64]domain.User{}, err: errors.New("redis down")}
	u, err := NewService(repo, cache).GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{users: map[int64]domain.User{}}
	cache := &memCache{users: map[int64]domain.User{1: {ID: 1, Username: "stale"}}}
	svc := NewService(repo, cache)

	require.NoError(t, svc.Upsert(ctx, &domain.User{ID: 1, Username: "fresh"}))
	assert.NotContains(t, cache.users, int64(1))
	assert.False(t, repo.users[1].UpdatedAt.IsZero())

	u, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fresh", u.Username)

	assert.Error(t, svc.Upsert(ctx, nil))
}
