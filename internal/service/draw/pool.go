package draw

import (
	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
)

// Pool is a cumulative-weight selection pool backed by a Fenwick tree:
// picking and removing an entry are both O(log n). Removed entries keep a
// zero weight and can never be returned again.
type Pool struct {
	users   []int64
	index   map[int64]int
	weights []float64
	tree    []float64 // 1-based Fenwick tree over weights
	total   float64
	left    int
	step    int // highest power of two <= len(users)
}

// BuildPool weights every distinct participant. Duplicate user ids keep the
// first record.
func BuildPool(participants []dg.Participant, cfg WeightConfig) *Pool {
	p := &Pool{
		users:   make([]int64, 0, len(participants)),
		index:   make(map[int64]int, len(participants)),
		weights: make([]float64, 0, len(participants)),
	}
	for _, part := range participants {
		if _, dup := p.index[part.UserID]; dup {
			continue
		}
		p.index[part.UserID] = len(p.users)
		p.users = append(p.users, part.UserID)
		p.weights = append(p.weights, ComputeWeight(part, cfg))
	}

	n := len(p.users)
	p.tree = make([]float64, n+1)
	for i, w := range p.weights {
		p.total += w
		// O(n) construction: push each node into its parent.
		idx := i + 1
		p.tree[idx] += w
		if parent := idx + (idx & -idx); parent <= n {
			p.tree[parent] += p.tree[idx]
		}
	}
	p.left = n
	p.step = 1
	for p.step*2 <= n {
		p.step *= 2
	}
	if n == 0 {
		p.step = 0
	}
	return p
}

// Len returns the number of entries still eligible.
func (p *Pool) Len() int { return p.left }

// Total returns the summed weight of eligible entries.
func (p *Pool) Total() float64 { return p.total }

// Weight returns the current weight of userID, zero once it was removed.
func (p *Pool) Weight(userID int64) float64 {
	if i, ok := p.index[userID]; ok {
		return p.weights[i]
	}
	return 0
}

// find returns the index whose cumulative weight range contains target.
func (p *Pool) find(target float64) int {
	pos := 0
	rem := target
	n := len(p.users)
	for step := p.step; step > 0; step >>= 1 {
		next := pos + step
		if next <= n && p.tree[next] <= rem {
			pos = next
			rem -= p.tree[next]
		}
	}
	if pos < n && p.weights[pos] > 0 {
		return pos
	}
	// Rounding left the target on a removed entry or past the end; settle on
	// the nearest eligible neighbour so exclusion stays exact.
	for i := pos + 1; i < n; i++ {
		if p.weights[i] > 0 {
			return i
		}
	}
	for i := min(pos, n-1); i >= 0; i-- {
		if p.weights[i] > 0 {
			return i
		}
	}
	return -1
}

func (p *Pool) remove(i int) {
	w := p.weights[i]
	if w == 0 {
		return
	}
	p.weights[i] = 0
	for idx := i + 1; idx < len(p.tree); idx += idx & -idx {
		p.tree[idx] -= w
	}
	p.left--
	if p.left == 0 {
		p.total = 0
		return
	}
	p.total -= w
	if p.total < 0 {
		p.total = 0
	}
}
