package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUnknownFetcher is returned for a fetcher kind with no implementation
var ErrUnknownFetcher = errors.New("unknown fetcher")

// Fetcher interface defines the contract for fetching implementations
type Fetcher interface {
	// Fetch retrieves the raw body of one page
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a response outside the 2xx range
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// checkStatus returns a StatusError for a status outside the 2xx range.
// Zero means no status was observed and passes.
func checkStatus(url string, code int) error {
	if code == 0 || (code >= 200 && code < 300) {
		return nil
	}
	return &StatusError{URL: url, StatusCode: code}
}

// Options configures every fetcher kind
type Options struct {
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool // resty only
	Logger           logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// New returns the fetcher for a configured kind: colly, rod or resty
func New(kind string, opts Options) (Fetcher, error) {
	switch kind {
	case "colly":
		return NewCollyFetcher(opts), nil
	case "resty":
		return NewRestyFetcher(opts), nil
	case "rod":
		return NewRodFetcher(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFetcher, kind)
	}
}

// Close releases resources held by a fetcher, if it holds any
func Close(f Fetcher) error {
	if closer, ok := f.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
