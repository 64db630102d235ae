package parser

import (
	"errors"
	"fmt"
	"strings"

	"monitor-pricewatch/models"
)

// ErrUnknownParser is returned for a parser kind with no implementation
var ErrUnknownParser = errors.New("unknown parser")

// Page is what one fetched results page yields
type Page struct {
	Records    []models.CatalogRecord
	TotalItems int  // total results reported by the retailer, 0 when not reported
	TotalPages int  // total pages reported by the retailer, 0 when not reported
	Exhausted  bool // the retailer signalled that no results remain
}

// Parser extracts catalog records from one page of retailer content
type Parser interface {
	Parse(body []byte) (*Page, error)
}

// New returns the parser for a retailer kind. linkBase is prepended to relative links.
func New(kind, linkBase string) (Parser, error) {
	switch kind {
	case "dell":
		return NewDellParser(linkBase), nil
	case "newegg":
		return NewNeweggParser(linkBase), nil
	case "bestbuy":
		return NewBestBuyParser(linkBase), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, kind)
	}
}

// absoluteLink resolves protocol-relative and root-relative links against base
func absoluteLink(base, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(base, "/") + href
	default:
		return href
	}
}
