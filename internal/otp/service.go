// Package otp issues and verifies the 4-digit one-time codes used for
// phone-based account recovery.
package otp

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrRateLimited = errors.New("too many code requests")
	ErrMismatch    = errors.New("code does not match")
)

// limiterIdleAfter is how long a phone's limiter may sit unused before it
// is dropped; an evicted phone simply starts with a fresh burst.
const limiterIdleAfter = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Service generates codes, remembers the last one per phone and checks
// submissions against it. Verification consumes the code.
type Service struct {
	store Store
	ttl   time.Duration

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

func NewService(store Store, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		ttl:      ttl,
		limiters: make(map[string]*limiterEntry),
	}
}

func (s *Service) limiter(phone string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastSweep) > limiterIdleAfter {
		s.sweepLocked(now)
	}

	e, ok := s.limiters[phone]
	if !ok {
		// one code every 30s per phone, small burst for retries
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(30*time.Second), 3)}
		s.limiters[phone] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweepLocked drops limiters that have been idle past the cutoff so the map
// does not grow with every phone number ever seen. Caller holds s.mu.
func (s *Service) sweepLocked(now time.Time) {
	for phone, e := range s.limiters {
		if now.Sub(e.lastSeen) > limiterIdleAfter {
			delete(s.limiters, phone)
		}
	}
	s.lastSweep = now
}

// Issue generates a fresh 4-digit code for the phone and stores it with the
// configured TTL, replacing any earlier code.
func (s *Service) Issue(ctx context.Context, phone string) (string, error) {
	if !s.limiter(phone).Allow() {
		return "", ErrRateLimited
	}

	code := strconv.Itoa(1000 + rand.Intn(9000))
	if err := s.store.Set(ctx, phone, code, s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the submitted code against the last-issued one, comparing as
// integers so leading whitespace or zero-padding quirks don't matter. A
// successful verification consumes the code.
func (s *Service) Verify(ctx context.Context, phone, submitted string) error {
	stored, err := s.store.Get(ctx, phone)
	if err != nil {
		return err
	}

	want, err := strconv.Atoi(stored)
	if err != nil {
		return ErrMismatch
	}
	got, err := strconv.Atoi(strings.TrimSpace(submitted))
	if err != nil || got != want {
		return ErrMismatch
	}

	return s.store.Delete(ctx, phone)
}
