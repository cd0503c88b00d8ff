package provider

import (
	"errors"
	"fmt"
)

var (
	ErrNoData        = errors.New("no data returned")
	ErrRateLimited   = errors.New("upstream rate limit reached")
	ErrMissingAPIKey = errors.New("api key not configured")
)

// APIError is an upstream rejection. Status is zero when the upstream
// answered 200 with an error payload.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Message)
}
