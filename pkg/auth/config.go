package auth

import (
	"time"
)

const (
	// DefaultSessionTTL is the sliding session lifetime
	DefaultSessionTTL = 30 * time.Minute
	// DefaultResetTokenTTL is the lifetime of a password-reset token
	DefaultResetTokenTTL = time.Hour
)

// Config controls the auth core. Zero values select the defaults.
type Config struct {
	SessionTTL        time.Duration
	ResetTokenTTL     time.Duration
	BcryptCost        int
	MinPasswordLength int

	// Now overrides the time source (tests). Default: time.Now in UTC.
	Now func() time.Time
}

func applyDefaults(cfg *Config) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = DefaultResetTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		}
	}
}
