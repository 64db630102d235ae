package searchurl

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageURL returns the search URL with its page parameter set to page.
// Every other query parameter is kept.
func PageURL(urlStr, param string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid page number: %d", page)
	}
	if param == "" {
		return "", fmt.Errorf("page parameter is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set(param, strconv.Itoa(page))

	newParsedURL := *parsedURL
	newParsedURL.RawQuery = query.Encode()
	return newParsedURL.String(), nil
}
