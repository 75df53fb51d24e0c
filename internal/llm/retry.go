package llm

import (
	"context"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
)

// doWithRetry issues the request built by build, retrying on transport
// errors, 429 and 5xx with linear backoff. The build function is invoked per
// attempt so the request body is always fresh.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &httpStatusError{status: resp.Status, code: resp.StatusCode}
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

type httpStatusError struct {
	status string
	code   int
}

func (e *httpStatusError) Error() string {
	return "llm: retries exhausted, last status " + e.status
}
