package user

import "context"

// Repository defines persistence operations for User aggregate.
// GetByID returns nil, nil when the user is unknown.
type Repository interface {
	Upsert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
}
