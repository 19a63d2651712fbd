package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Transient failures get one retry with exponential backoff; everything else
// surfaces immediately. Requests are rebuilt per attempt so bodies replay.
const (
	transientRetries = 1
	retryBaseBackoff = 500 * time.Millisecond
)

// BuildRequest constructs a fresh request for each attempt.
type BuildRequest func(ctx context.Context) (*http.Request, error)

// Do executes a request with transient-failure retry. Connection errors, 429,
// and 5xx responses are retried; any other response (including non-429 4xx)
// is returned as-is for the caller to classify. The response body is open on
// return and must be closed by the caller.
func Do(ctx context.Context, client *http.Client, build BuildRequest) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	backoff := retry.WithMaxRetries(transientRetries, retry.NewExponential(retryBaseBackoff))

	var resp *http.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		r, doErr := client.Do(req)
		if doErr != nil {
			return retry.RetryableError(doErr)
		}
		if transientStatus(r.StatusCode) {
			r.Body.Close()
			return retry.RetryableError(fmt.Errorf("status %d", r.StatusCode))
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
