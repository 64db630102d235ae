package fetcher

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	opts Options
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(opts Options) *CollyFetcher {
	return &CollyFetcher{opts: opts}
}

func (cf *CollyFetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(cf.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	if cf.opts.Timeout > 0 {
		c.SetRequestTimeout(cf.opts.Timeout)
	}

	// Pages are requested one at a time; the paginator owns the delay between them
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	})

	return c
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := cf.newCollector(ctx)

	var body []byte
	statusCode := 0

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		statusCode = r.StatusCode
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		cf.opts.logger().WithField("url", url).Debugf("Error fetching %s: %v", url, err)
	})

	if err := c.Visit(url); err != nil {
		if statusCode != 0 {
			return nil, &StatusError{URL: url, StatusCode: statusCode}
		}
		return nil, fmt.Errorf("failed to visit URL: %w", err)
	}

	return body, nil
}
