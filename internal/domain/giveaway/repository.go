package giveaway

import (
	"context"
	"time"
)

// Transition is a conditional status change applied only when the stored
// status still equals From.
//
// Timestamps follow the target status: scheduled stores ScheduledPublish,
// created clears it, published sets PublishedAt (and clears the schedule),
// finished sets FinishedAt.
type Transition struct {
	From             Status
	To               Status
	At               time.Time
	ScheduledPublish *time.Time
}

// Repository persists giveaway aggregates.
//
// GetByID returns ErrNotFound for a missing row. TransitionStatus returns
// ErrNotFound or ErrStatusConflict when nothing was updated.
type Repository interface {
	Create(ctx context.Context, g *Giveaway) error
	GetByID(ctx context.Context, id string) (*Giveaway, error)
	ListByAdmin(ctx context.Context, adminID int64, limit, offset int) ([]Giveaway, error)
	ListByStatus(ctx context.Context, status Status) ([]Giveaway, error)
	TransitionStatus(ctx context.Context, id string, t Transition) error
	// Delete removes the giveaway together with its participants and winners.
	Delete(ctx context.Context, id string) error
}

// ParticipantRepository stores participants per giveaway.
type ParticipantRepository interface {
	// Add inserts p while the giveaway is published and below its cap,
	// and increments the referrer's referral_count in the same transaction.
	// Returns ErrInvalidState, ErrGiveawayFull or ErrAlreadyParticipating.
	Add(ctx context.Context, p *Participant) error
	Get(ctx context.Context, giveawayID string, userID int64) (*Participant, error)
	List(ctx context.Context, giveawayID string) ([]Participant, error)
	Count(ctx context.Context, giveawayID string) (int, error)
}

// WinnerRepository stores draw outcomes.
type WinnerRepository interface {
	// CommitDraw inserts winners and moves the giveaway published -> finished
	// in one transaction. Returns ErrStatusConflict if it is no longer published.
	CommitDraw(ctx context.Context, giveawayID string, winners []Winner, finishedAt time.Time) error
	// ReplaceWinners clears the previous winners of a finished giveaway and
	// inserts the new batch in one transaction.
	ReplaceWinners(ctx context.Context, giveawayID string, winners []Winner, finishedAt time.Time) error
	List(ctx context.Context, giveawayID string) ([]Winner, error)
	UpdateFlags(ctx context.Context, giveawayID string, userID int64, f WinnerFlags) error
}
