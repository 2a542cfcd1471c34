// Package challenge implements the image-grid bot check shown before joining
// giveaways that enable it.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/open-builders/giveaway-raffle/internal/utils/random"
)

const (
	GridSize    = 6
	MaxAttempts = 3
)

var (
	ErrNoChallenge     = errors.New("no active challenge")
	ErrInvalidPosition = errors.New("position out of range")
	ErrTooManyAttempts = errors.New("challenge attempts exhausted")
)

// Category is a named group of images; the user must pick the single cell
// that belongs to the asked category.
type Category struct {
	Name   string
	Images []string
}

var categories = []Category{
	{Name: "pastry", Images: []string{"🍩", "🥐", "🧁", "🍰", "🥨"}},
	{Name: "animals", Images: []string{"🐶", "🐱", "🐭", "🐰", "🦊"}},
	{Name: "fruits", Images: []string{"🍎", "🍌", "🍊", "🍇", "🍓"}},
	{Name: "transport", Images: []string{"🚗", "✈️", "🚂", "🚲", "🛥️"}},
	{Name: "flowers", Images: []string{"🌸", "🌼", "🌺", "🌻", "🌷"}},
}

// Challenge is what the client renders.
type Challenge struct {
	GiveawayID string    `json:"giveaway_id"`
	Category   string    `json:"category"`
	Images     []string  `json:"images"`
	Attempts   int       `json:"attempts_left"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Verdict is the outcome of one answer.
type Verdict struct {
	Passed       bool `json:"passed"`
	AttemptsLeft int  `json:"attempts_left"`
}

type key struct {
	userID     int64
	giveawayID string
}

type session struct {
	challenge Challenge
	correct   int
	attempts  int
	passed    bool
	expires   time.Time
}

// Service owns the in-flight sessions. Sessions live until they are passed
// and consumed, exhausted, or expired.
type Service struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[key]*session

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[key]*session),
		stop:     make(chan struct{}),
	}
}

// Start runs the janitor that drops expired sessions until Stop or ctx end.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					log.Debug().Int("expired", n).Msg("challenge sessions swept")
				}
			}
		}
	}()
}

// Stop ends the janitor and clears every session.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
}

// Issue creates (or replaces) the challenge of userID for giveawayID. A
// replacement keeps the spent attempts and the expiry of the session it
// replaces; once the attempts are exhausted Issue fails with
// ErrTooManyAttempts until that session expires.
func (s *Service) Issue(userID int64, giveawayID string) (Challenge, error) {
	k := key{userID, giveawayID}
	now := s.now()
	spent, expires := 0, now.Add(s.ttl)
	s.mu.Lock()
	if prev, ok := s.sessions[k]; ok && !now.After(prev.expires) && !prev.passed {
		spent, expires = prev.attempts, prev.expires
	}
	s.mu.Unlock()
	if spent >= MaxAttempts {
		return Challenge{}, ErrTooManyAttempts
	}

	target, err := random.Pick(categories)
	if err != nil {
		return Challenge{}, err
	}
	answer, err := random.Pick(target.Images)
	if err != nil {
		return Challenge{}, err
	}

	var decoys []string
	for _, c := range categories {
		if c.Name != target.Name {
			decoys = append(decoys, c.Images...)
		}
	}
	if err := random.Shuffle(decoys); err != nil {
		return Challenge{}, err
	}
	grid := append([]string{answer}, decoys[:GridSize-1]...)
	if err := random.Shuffle(grid); err != nil {
		return Challenge{}, err
	}
	correct := 0
	for i, img := range grid {
		if img == answer {
			correct = i
			break
		}
	}

	ch := Challenge{
		GiveawayID: giveawayID,
		Category:   target.Name,
		Images:     grid,
		Attempts:   MaxAttempts - spent,
		ExpiresAt:  expires,
	}
	s.mu.Lock()
	s.sessions[k] = &session{challenge: ch, correct: correct, attempts: spent, expires: expires}
	s.mu.Unlock()
	return ch, nil
}

// Answer checks the selected cell. An exhausted session stays in place,
// blocking new challenges, until it expires.
func (s *Service) Answer(userID int64, giveawayID string, position int) (Verdict, error) {
	if position < 0 || position >= GridSize {
		return Verdict{}, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	k := key{userID, giveawayID}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[k]
	if !ok || s.now().After(sess.expires) {
		delete(s.sessions, k)
		return Verdict{}, ErrNoChallenge
	}
	if sess.attempts >= MaxAttempts {
		return Verdict{}, ErrNoChallenge
	}
	if sess.passed {
		return Verdict{Passed: true, AttemptsLeft: MaxAttempts - sess.attempts}, nil
	}
	if position == sess.correct {
		sess.passed = true
		return Verdict{Passed: true, AttemptsLeft: MaxAttempts - sess.attempts}, nil
	}
	sess.attempts++
	return Verdict{Passed: false, AttemptsLeft: MaxAttempts - sess.attempts}, nil
}

// Passed reports whether userID holds an unexpired pass for giveawayID.
func (s *Service) Passed(userID int64, giveawayID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key{userID, giveawayID}]
	return ok && sess.passed && !s.now().After(sess.expires)
}

// Consume spends a pass. It returns false if there was none.
func (s *Service) Consume(userID int64, giveawayID string) bool {
	k := key{userID, giveawayID}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[k]
	if !ok || !sess.passed || s.now().After(sess.expires) {
		return false
	}
	delete(s.sessions, k)
	return true
}

func (s *Service) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}
