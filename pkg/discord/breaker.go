package discord

import (
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/tinyland-inc/gamelink/pkg/logger"
	"github.com/tinyland-inc/gamelink/pkg/remote"
)

// BreakerConfig tunes the circuit breaker in front of Discord REST calls.
type BreakerConfig struct {
	// Failures out of Window calls that open the breaker.
	Failures uint
	Window   uint
	// Delay is how long the breaker stays open before probing again.
	Delay time.Duration
	// OnStateChange is called on every transition, for metrics.
	OnStateChange func(from, to string)
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Failures: 5,
		Window:   10,
		Delay:    15 * time.Second,
	}
}

type breaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.Window == 0 {
		cfg = DefaultBreakerConfig()
	}
	if cfg.Failures == 0 || cfg.Failures > cfg.Window {
		cfg.Failures = cfg.Window
	}
	b := circuitbreaker.NewBuilder[any]().
		// Only transient failures count; a deleted message or a missing
		// permission says nothing about API health.
		HandleIf(func(_ any, err error) bool {
			return err != nil && errors.Is(err, remote.ErrTransient)
		}).
		WithFailureThresholdRatio(cfg.Failures, cfg.Window).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.WarnCF("discord", "Circuit breaker state change", map[string]any{
				"from": stateName(e.OldState),
				"to":   stateName(e.NewState),
			})
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(stateName(e.OldState), stateName(e.NewState))
			}
		})
	return &breaker{cb: b.Build()}
}

// call runs fn through the breaker. fn must return classified errors. An open
// breaker fails fast with remote.ErrTransient.
func (b *breaker) call(fn func() error) error {
	_, err := failsafe.With(b.cb).Get(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return remote.Wrap(remote.ErrTransient, err)
	}
	return err
}

func (b *breaker) open() bool {
	return b.cb.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
