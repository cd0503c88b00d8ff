package provider

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

var ErrCircuitOpen = errors.New("upstream circuit open")

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = time.Minute
)

// newBreaker trips after consecutive transport or server failures. Empty
// results and quota notices are answers, not outages, and keep it closed.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return errors.Is(err, ErrNoData) || errors.Is(err, ErrRateLimited)
		},
	})
}

func guarded[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrCircuitOpen
	}
	if out == nil {
		var zero T
		return zero, err
	}
	return out.(T), err
}
