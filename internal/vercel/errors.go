package vercel

import "fmt"

// APIError is a non-2xx response from the Vercel API. It carries the
// status code and the raw response body so callers can diagnose the
// failure without retrying blindly.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vercel API request failed: %d - %s", e.StatusCode, e.Body)
}
