package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source yields uniform floats in [0, 1). Draws take one as a dependency so
// tests can replace it with a seeded or scripted generator.
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// New returns a ChaCha8 generator seeded from crypto/rand, safe for
// concurrent use.
func New() Source {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// unreachable on supported platforms
		binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
		binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
	}
	return &lockedSource{r: rand.New(rand.NewChaCha8(seed))}
}

// NewSeeded returns a deterministic generator for reproducible draws.
func NewSeeded(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Intn returns a uniform int in [0, n) from src.
func Intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
