package service

import (
	"time"

	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/storage"
)

const (
	attemptsCollection = "LoginAttempts"

	// lockoutWindow is the sliding interval over which failed attempts
	// count; maxFailures within it locks the account.
	lockoutWindow = 5 * time.Minute
	maxFailures   = 3
)

// LoginGuard bounds the rate of failed authentication attempts per username
// using a sliding time window. Its state is derived entirely from the
// persisted attempts log; there is no explicit per-user counter and no
// explicit unlock, a lockout simply expires with its contributing failures.
type LoginGuard struct {
	store *storage.Store

	// now is swappable so tests can move the window.
	now func() time.Time
}

// NewLoginGuard creates a guard over the store's attempts log.
func NewLoginGuard(store *storage.Store) *LoginGuard {
	return &LoginGuard{store: store, now: time.Now}
}

// RecordAttempt logs the outcome of an authentication attempt. A success
// purges the username's failure history immediately; a failure is appended
// after expired entries are pruned, keeping at most maxFailures entries per
// username so one account's noise can never evict another's history.
func (g *LoginGuard) RecordAttempt(username string, success bool) error {
	// the prune-and-rewrite of the log must run as one step
	return g.store.WithLock(func() error {
		cutoff := g.now().Add(-lockoutWindow)

		recent := make([]models.LoginAttempt, 0, maxFailures+1)
		for _, a := range g.attempts() {
			if a.Timestamp.After(cutoff) {
				recent = append(recent, a)
			}
		}

		if success {
			kept := recent[:0]
			for _, a := range recent {
				if a.Username != username {
					kept = append(kept, a)
				}
			}
			return g.persist(kept)
		}

		recent = append(recent, models.LoginAttempt{
			Username:  username,
			Success:   false,
			Timestamp: g.now(),
		})
		return g.persist(trimUser(recent, username))
	})
}

// IsLocked reports whether the username has reached maxFailures non-expired
// failed attempts. Fewer than maxFailures attempts in total short-circuits
// to false.
func (g *LoginGuard) IsLocked(username string) bool {
	attempts := g.attempts()
	if len(attempts) < maxFailures {
		return false
	}

	cutoff := g.now().Add(-lockoutWindow)
	failures := 0
	for _, a := range attempts {
		if a.Username == username && !a.Success && a.Timestamp.After(cutoff) {
			failures++
		}
	}
	return failures >= maxFailures
}

func (g *LoginGuard) attempts() []models.LoginAttempt {
	records := g.store.List(attemptsCollection)
	attempts := make([]models.LoginAttempt, 0, len(records))
	for _, rec := range records {
		var a models.LoginAttempt
		if err := storage.Decode(rec, &a); err != nil {
			continue
		}
		attempts = append(attempts, a)
	}
	return attempts
}

func (g *LoginGuard) persist(attempts []models.LoginAttempt) error {
	records := make([]storage.Record, 0, len(attempts))
	for _, a := range attempts {
		rec, err := storage.Encode(a)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return g.store.Replace(attemptsCollection, records)
}

// trimUser drops the oldest failures of one username beyond maxFailures,
// leaving other usernames' entries untouched.
func trimUser(attempts []models.LoginAttempt, username string) []models.LoginAttempt {
	count := 0
	for _, a := range attempts {
		if a.Username == username && !a.Success {
			count++
		}
	}
	excess := count - maxFailures
	if excess <= 0 {
		return attempts
	}

	kept := attempts[:0]
	for _, a := range attempts {
		if excess > 0 && a.Username == username && !a.Success {
			excess--
			continue
		}
		kept = append(kept, a)
	}
	return kept
}
