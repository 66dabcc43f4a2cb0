package fetcher

import (
	"resty.dev/v3"
)

// NewHTTPClient creates a resty client for baseURL. It never retries on its
// own: aggregation gives each source exactly one attempt, and callers that
// want more wrap the call in Retry so backoff and cancellation follow one
// policy.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
}
