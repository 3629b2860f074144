package resilience

import (
	"strings"
	"time"
)

// Operation families. Adapters name operations "<family>.<step>", e.g.
// "natskv.put_record"; the family selects the retry budget.
const (
	FamilyMatterStore = "natskv"
	FamilyEvents      = "nats"
)

// FamilyPolicy narrows the retry budget of one operation family. Zero fields
// inherit the executor-wide values.
type FamilyPolicy struct {
	RetryMaxAttempts int
	RetryMaxBackoff  time.Duration
}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// Families overrides retries per operation family. Matter records back
	// the intake response and get the larger budget; intake events are
	// published after the record is stored and give up sooner.
	Families map[string]FamilyPolicy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		Families: map[string]FamilyPolicy{
			FamilyMatterStore: {RetryMaxAttempts: 4, RetryMaxBackoff: 800 * time.Millisecond},
			FamilyEvents:      {RetryMaxAttempts: 2},
		},

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	families := make(map[string]FamilyPolicy, len(out.Families))
	for name, p := range out.Families {
		if p.RetryMaxAttempts <= 0 {
			p.RetryMaxAttempts = out.RetryMaxAttempts
		}
		if p.RetryMaxBackoff <= 0 {
			p.RetryMaxBackoff = out.RetryMaxBackoff
		}
		p.RetryMaxBackoff = max(p.RetryMaxBackoff, out.RetryInitialBackoff)
		families[name] = p
	}
	out.Families = families

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// retryBudget returns the attempt cap and backoff ceiling for operation.
func (c Config) retryBudget(operation string) (int, time.Duration) {
	family, _, _ := strings.Cut(operation, ".")
	if p, ok := c.Families[family]; ok {
		return p.RetryMaxAttempts, p.RetryMaxBackoff
	}
	return c.RetryMaxAttempts, c.RetryMaxBackoff
}
