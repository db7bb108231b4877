package resilience

import (
	"time"

	"github.com/sells-group/holdings-etl/internal/config"
)

// BreakerFromConfig builds the fetcher's per-host breaker settings.
func BreakerFromConfig(c config.FetchConfig) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if c.BreakerThreshold > 0 {
		cfg.Threshold = c.BreakerThreshold
	}
	if c.BreakerCooldownSecs > 0 {
		cfg.Cooldown = time.Duration(c.BreakerCooldownSecs) * time.Second
	}
	return cfg
}

// BackoffFromConfig builds the retry policy for opening the store.
func BackoffFromConfig(c config.StoreConfig) Backoff {
	b := DefaultBackoff()
	if c.ConnectAttempts > 0 {
		b.Attempts = c.ConnectAttempts
	}
	if c.ConnectBackoffMs > 0 {
		b.Initial = time.Duration(c.ConnectBackoffMs) * time.Millisecond
	}
	return b
}
