package draw

import (
	"fmt"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	"github.com/open-builders/giveaway-raffle/internal/utils/random"
)

// Selection is one drawn entry.
type Selection struct {
	UserID int64
	Place  int
}

// SelectWinners draws prizeCount distinct users without replacement. Each
// draw picks an eligible user with probability proportional to its weight
// among the users still in the pool.
//
// The participant check runs before the first draw, so rng is untouched when
// it fails.
func SelectWinners(pool *Pool, prizeCount int, rng random.Source) ([]Selection, error) {
	if prizeCount < 1 {
		return nil, fmt.Errorf("%w: prize count must be at least 1", dg.ErrValidation)
	}
	if pool.Len() < prizeCount {
		return nil, fmt.Errorf("%w: %d participants for %d prizes", dg.ErrInsufficientParticipants, pool.Len(), prizeCount)
	}

	out := make([]Selection, 0, prizeCount)
	for place := 1; place <= prizeCount; place++ {
		if pool.Len() == 0 {
			break
		}
		i := pool.find(rng.Float64() * pool.Total())
		if i < 0 {
			break
		}
		out = append(out, Selection{UserID: pool.users[i], Place: place})
		pool.remove(i)
	}
	return out, nil
}
