package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffle performs a cryptographically secure shuffle of the slice.
// Used where guessing the order would defeat the purpose, e.g. challenge grids.
func Shuffle[T any](slice []T) error {
	for i := len(slice) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("shuffle: random index: %w", err)
		}
		j := int(jBig.Int64())
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}

// Pick returns a cryptographically random element of items.
func Pick[T any](items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, fmt.Errorf("pick: empty slice")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(items))))
	if err != nil {
		return zero, fmt.Errorf("pick: random index: %w", err)
	}
	return items[n.Int64()], nil
}
