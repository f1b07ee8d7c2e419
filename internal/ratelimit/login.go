// Package ratelimit throttles login attempts and booking submissions.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock lets tests control time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const (
	reasonLockout     = "lockout"
	reasonMaxAttempts = "max_attempts"
	reasonIPHourly    = "ip_hourly_limit"

	ipWindow        = time.Hour
	cleanupInterval = 5 * time.Minute
)

// Config controls login throttling. Zero fields fall back to DefaultConfig.
type Config struct {
	LoginMaxAttempts  int           // failures before an account is locked
	LoginLockout      time.Duration // how long a locked account stays locked
	LoginMaxIPPerHour int           // failures per client address per hour

	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		LoginMaxAttempts:  5,
		LoginLockout:      5 * time.Minute,
		LoginMaxIPPerHour: 30,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LoginMaxAttempts <= 0 {
		c.LoginMaxAttempts = def.LoginMaxAttempts
	}
	if c.LoginLockout <= 0 {
		c.LoginLockout = def.LoginLockout
	}
	if c.LoginMaxIPPerHour <= 0 {
		c.LoginMaxIPPerHour = def.LoginMaxIPPerHour
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	return c
}

// LimitResult is the outcome of a check. Reason is for logs only.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string
}

// failures counts failed logins for one account or one address.
type failures struct {
	count    int
	since    time.Time
	last     time.Time
	lockedAt time.Time
}

func (f *failures) add(now time.Time) {
	f.count++
	f.last = now
}

func (f *failures) lockedUntil(lockout time.Duration) time.Time {
	if f.lockedAt.IsZero() {
		return time.Time{}
	}
	return f.lockedAt.Add(lockout)
}

// Limiter tracks failed logins per account and per client address. Keys are
// hashed so raw emails never sit in memory longer than a request.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	accounts map[string]*failures
	addrs    map[string]*failures

	ctx       context.Context
	cancel    context.CancelFunc
	sweepOnce sync.Once
	sweepers  sync.WaitGroup
}

// New builds a limiter. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		cfg:      cfg.withDefaults(),
		accounts: make(map[string]*failures),
		addrs:    make(map[string]*failures),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.cancel()
	l.sweepers.Wait()
}

// CheckLogin reports whether identifier may attempt a login from ip. It does
// not count the attempt; call RecordLoginFailure when the password is wrong.
func (l *Limiter) CheckLogin(identifier, ip string) LimitResult {
	l.startSweep()
	now := l.cfg.Clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if f := l.accounts[accountKey(identifier)]; f != nil {
		if until := f.lockedUntil(l.cfg.LoginLockout); !until.IsZero() {
			if now.Before(until) {
				return LimitResult{RetryAfter: until.Sub(now), Reason: reasonLockout}
			}
		} else if f.count >= l.cfg.LoginMaxAttempts {
			return LimitResult{RetryAfter: l.cfg.LoginLockout, Reason: reasonMaxAttempts}
		}
	}

	if f := l.addrs[addrKey(ip)]; f != nil && f.count >= l.cfg.LoginMaxIPPerHour {
		if age := now.Sub(f.since); age < ipWindow {
			return LimitResult{RetryAfter: ipWindow - age, Reason: reasonIPHourly}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordLoginFailure counts a failed login and reports whether it locked the
// account.
func (l *Limiter) RecordLoginFailure(identifier, ip string) bool {
	now := l.cfg.Clock.Now()
	account, addr := accountKey(identifier), addrKey(ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.accounts[account]
	if f == nil || (!f.lockedAt.IsZero() && !now.Before(f.lockedUntil(l.cfg.LoginLockout))) {
		f = &failures{since: now}
		l.accounts[account] = f
	}
	f.add(now)

	lockedOut := false
	if f.count >= l.cfg.LoginMaxAttempts && f.lockedAt.IsZero() {
		f.lockedAt = now
		lockedOut = true
	}

	g := l.addrs[addr]
	if g == nil || now.Sub(g.since) >= ipWindow {
		g = &failures{since: now}
		l.addrs[addr] = g
	}
	g.add(now)

	return lockedOut
}

// ResetLogin forgets the account's failures after a successful login. The
// address counter is kept.
func (l *Limiter) ResetLogin(identifier string) {
	l.mu.Lock()
	delete(l.accounts, accountKey(identifier))
	l.mu.Unlock()
}

func (l *Limiter) startSweep() {
	l.sweepOnce.Do(func() {
		l.sweepers.Add(1)
		go func() {
			defer l.sweepers.Done()
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-l.ctx.Done():
					return
				case <-ticker.C:
					l.sweep()
				}
			}
		}()
	})
}

func (l *Limiter) sweep() {
	now := l.cfg.Clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, f := range l.accounts {
		if now.Sub(f.last) > l.cfg.LoginLockout+ipWindow {
			delete(l.accounts, k)
		}
	}
	for k, f := range l.addrs {
		if now.Sub(f.last) > ipWindow {
			delete(l.addrs, k)
		}
	}
}

func accountKey(identifier string) string {
	return hashKey("login:id:", normalizeIdentifier(identifier))
}

func addrKey(ip string) string {
	return hashKey("login:ip:", ip)
}

func hashKey(prefix, value string) string {
	sum := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(sum[:8])
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// SanitizeIdentifier masks an email or phone number for logs.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if local, domain, ok := strings.Cut(identifier, "@"); ok {
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded records a rejected attempt on the request logger.
func LogRateLimitExceeded(ctx context.Context, limitType, identifier, ip, reason string) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Rate limit exceeded")
}
