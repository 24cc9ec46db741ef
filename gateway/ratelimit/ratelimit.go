// Package ratelimit implements the per-key sliding window rate limiter,
// layered behind a token-bucket burst guard, plus login-attempt lockout
// bookkeeping.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"openibank/core/errs"
)

// Config governs a Limiter's behavior.
type Config struct {
	Window      time.Duration // sliding window width
	Limit       int           // max requests per key within Window
	BurstRate   float64       // token-bucket refill rate (tokens/sec)
	BurstSize   int           // token-bucket capacity
}

type keyState struct {
	mu        sync.Mutex
	timestamps []time.Time
	bucket    *rate.Limiter
}

// Limiter is a per-key sliding window limiter fronted by a token-bucket
// burst guard. The bucket absorbs bursts before the sliding window is even
// consulted; the sliding window remains the authoritative per-key cap.
type Limiter struct {
	cfg   Config
	nowFn func() time.Time

	mu   sync.Mutex
	keys map[string]*keyState
}

// New constructs a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, nowFn: time.Now, keys: make(map[string]*keyState)}
}

func (l *Limiter) stateFor(key string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.keys[key]
	if !ok {
		burstRate := l.cfg.BurstRate
		if burstRate <= 0 {
			burstRate = float64(l.cfg.Limit)
		}
		burstSize := l.cfg.BurstSize
		if burstSize <= 0 {
			burstSize = l.cfg.Limit
		}
		st = &keyState{bucket: rate.NewLimiter(rate.Limit(burstRate), burstSize)}
		l.keys[key] = st
	}
	return st
}

// Allow checks key against both the burst guard and the sliding window. It
// returns nil if the request may proceed, or a *errs.RateLimitExceededError
// carrying retry_after otherwise.
func (l *Limiter) Allow(key string) error {
	st := l.stateFor(key)
	now := l.nowFn()

	if !st.bucket.AllowN(now, 1) {
		return errs.NewRateLimitExceeded(time.Second)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	kept := st.timestamps[:0]
	for _, ts := range st.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	st.timestamps = kept

	if len(st.timestamps) >= l.cfg.Limit {
		oldest := st.timestamps[0]
		retryAfter := l.cfg.Window - now.Sub(oldest)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return errs.NewRateLimitExceeded(retryAfter)
	}

	st.timestamps = append(st.timestamps, now)
	return nil
}

// loginState tracks consecutive failures and lockout for one account.
type loginState struct {
	consecutiveFailures int
	lockedUntil         time.Time
	currentLockDuration time.Duration
}

// LoginLimiterConfig governs LoginLimiter's lockout escalation.
type LoginLimiterConfig struct {
	MaxFailures   int           // failures before the first lock
	InitialLock   time.Duration // duration of the first lock
	MaxLock       time.Duration // ceiling on doubling backoff
}

// LoginLimiter tracks consecutive login failures per account and locks out
// an account for a duration that doubles on each re-lock, up to a ceiling.
// A successful login clears the counter.
type LoginLimiter struct {
	cfg   LoginLimiterConfig
	nowFn func() time.Time

	mu       sync.Mutex
	accounts map[string]*loginState
}

// NewLoginLimiter constructs a LoginLimiter from cfg.
func NewLoginLimiter(cfg LoginLimiterConfig) *LoginLimiter {
	if cfg.InitialLock <= 0 {
		cfg.InitialLock = time.Minute
	}
	if cfg.MaxLock <= 0 {
		cfg.MaxLock = time.Hour
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	return &LoginLimiter{cfg: cfg, nowFn: time.Now, accounts: make(map[string]*loginState)}
}

// CheckLocked returns a *errs.AccountLockedError if account is currently
// locked out, or nil if a login attempt may proceed.
func (l *LoginLimiter) CheckLocked(account string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[account]
	if !ok {
		return nil
	}
	now := l.nowFn()
	if now.Before(st.lockedUntil) {
		return errs.NewAccountLocked(st.lockedUntil.Sub(now))
	}
	return nil
}

// RecordFailure registers a failed login attempt. Once consecutive
// failures reach MaxFailures, the account is locked for a duration that
// doubles on each subsequent re-lock, capped at MaxLock.
func (l *LoginLimiter) RecordFailure(account string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[account]
	if !ok {
		st = &loginState{}
		l.accounts[account] = st
	}
	st.consecutiveFailures++
	if st.consecutiveFailures < l.cfg.MaxFailures {
		return
	}

	next := st.currentLockDuration * 2
	if next <= 0 {
		next = l.cfg.InitialLock
	}
	if next > l.cfg.MaxLock {
		next = l.cfg.MaxLock
	}
	st.currentLockDuration = next
	st.lockedUntil = l.nowFn().Add(next)
	st.consecutiveFailures = 0
}

// RecordSuccess clears the failure counter and any lock for account.
func (l *LoginLimiter) RecordSuccess(account string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, account)
}
