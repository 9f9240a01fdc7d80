// Package backoff implements exponential backoff with an overall retry
// timeout budget.
package backoff

import (
	"errors"
	"math/rand"
	"time"
)

// Config defines backoff parameters.
type Config struct {
	Min          time.Duration `yaml:"min"`
	Max          time.Duration `yaml:"max"`
	Factor       float64       `yaml:"factor"`
	NoJitter     bool          `yaml:"no_jitter"`
	RetryTimeout time.Duration `yaml:"retry_timeout"`
}

func (c Config) applyDefaults() Config {
	if c.Factor == 0 {
		c.Factor = 2
	}
	return c
}

// Backoff constructs Attempts for a fixed configuration.
type Backoff struct {
	config Config
}

// New returns a new Backoff configured by config.
func New(config Config) *Backoff {
	return &Backoff{config: config.applyDefaults()}
}

// Attempts returns a new Attempts iterator tracking a single retry budget.
func (b *Backoff) Attempts() *Attempts {
	return &Attempts{
		config:   b.config,
		interval: b.config.Min,
	}
}

// Attempts tracks the state of a single sequence of retries.
type Attempts struct {
	config   Config
	interval time.Duration
	elapsed  time.Duration
	count    int
	err      error
}

// WaitForNext blocks until the next attempt should be made, and returns
// whether an attempt should be made at all. The very first call always
// returns true immediately. Subsequent calls sleep for the current backoff
// interval, unless doing so would exceed the configured RetryTimeout, in
// which case it returns false and sets Err.
func (a *Attempts) WaitForNext() bool {
	if a.count == 0 {
		a.count++
		return true
	}

	wait := a.interval
	if a.config.Max > 0 && wait > a.config.Max {
		wait = a.config.Max
	}
	if !a.config.NoJitter {
		wait = wait/2 + time.Duration(rand.Int63n(int64(wait/2)+1))
	}

	if a.config.RetryTimeout > 0 && a.elapsed+wait > a.config.RetryTimeout {
		a.err = errors.New("backoff: retry timeout exceeded")
		return false
	}

	time.Sleep(wait)
	a.elapsed += wait
	a.interval = time.Duration(float64(a.interval) * a.config.Factor)
	a.count++
	return true
}

// Err returns the error which caused WaitForNext to return false, or nil if
// the retry budget has not yet been exhausted.
func (a *Attempts) Err() error {
	return a.err
}
