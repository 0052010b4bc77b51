package transport

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ashureev/tutor-client/internal/config"
)

// NewBackOff builds the reconnect policy described by cfg. The flat policy
// waits the same delay before every attempt; the exponential policy doubles
// it with jitter up to MaxDelay.
func NewBackOff(cfg config.ReconnectConfig) backoff.BackOff {
	if cfg.Policy == config.BackoffExponential {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.Delay
		b.MaxInterval = cfg.MaxDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0.2
		b.Reset()
		return b
	}
	return backoff.NewConstantBackOff(cfg.Delay)
}

// DefaultReconnectDelay is the flat delay used when no policy is configured.
const DefaultReconnectDelay = 2 * time.Second
