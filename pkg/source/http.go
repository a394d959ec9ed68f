package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultUserAgent = "affiliana/1.0"

// Retry bounds the retries of a single collaborator request.
type Retry struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetry returns the retry policy used by the HTTP collaborators.
func DefaultRetry() Retry {
	return Retry{MaxRetries: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// BackOff returns an exponential policy bounded by r and cancelled with ctx.
func (r Retry) BackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialDelay
	b.MaxInterval = r.MaxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, r.MaxRetries), ctx)
}

// statusError is a non-200 response.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request %s: status %d", e.url, e.code)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// send performs a single request and returns the body of a 200 response.
// Other statuses are returned as *statusError.
func send(ctx context.Context, client *http.Client, method, url string, body []byte, header http.Header) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request %s: %w", url, err))
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: url, code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// permanentStatus stops retrying on statuses that will not change.
func permanentStatus(err error) error {
	var se *statusError
	if errors.As(err, &se) && !retryable(se.code) {
		return backoff.Permanent(err)
	}
	return err
}

// fetch GETs url and returns the body. Throttling and server errors are
// retried with exponential backoff; anything else fails immediately.
func fetch(ctx context.Context, client *http.Client, retry Retry, url string, header http.Header) ([]byte, error) {
	var body []byte
	op := func() error {
		data, err := send(ctx, client, http.MethodGet, url, nil, header)
		if err != nil {
			return permanentStatus(err)
		}
		body = data
		return nil
	}

	if err := backoff.Retry(op, retry.BackOff(ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
