package fetcher

import (
	"context"
	"fmt"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// RestyFetcher implements the Fetcher interface for JSON APIs using resty
type RestyFetcher struct {
	client *resty.Client
}

// NewRestyFetcher creates a new RestyFetcher instance
func NewRestyFetcher(opts Options) *RestyFetcher {
	client := resty.New().
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &RestyFetcher{client: client}
}

// Fetch implements the Fetcher interface
func (rf *RestyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := rf.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if !res.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode()}
	}
	return res.Body(), nil
}
