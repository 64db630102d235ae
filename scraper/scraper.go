package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"monitor-pricewatch/fetcher"
	"monitor-pricewatch/filter"
	"monitor-pricewatch/models"
	"monitor-pricewatch/parser"
	"monitor-pricewatch/searchurl"
)

// ErrInvalidPageSize is returned by PageCount for a non-positive page size
var ErrInvalidPageSize = errors.New("page size must be positive")

// PageCount returns how many pages of size hold total items
func PageCount(total, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}
	if total <= 0 {
		return 0, nil
	}
	count := total / size
	if total%size != 0 {
		count++
	}
	return count, nil
}

// Source describes one retailer's paginated search results
type Source struct {
	Name      string
	URL       string // any results page URL; the page parameter is rewritten
	PageParam string
	PageSize  int
	Fetcher   fetcher.Fetcher
	Parser    parser.Parser
	Filter    *filter.Filter
}

// Result is the outcome of scraping one source
type Result struct {
	Records     []models.CatalogRecord
	Pages       int // pages discovered on the first page
	FailedPages []int
}

// Paginator walks every results page of a source sequentially
type Paginator struct {
	delay time.Duration
	log   logrus.FieldLogger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPaginator creates a new Paginator waiting delay between page fetches
func NewPaginator(delay time.Duration, log logrus.FieldLogger) *Paginator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Paginator{
		delay: delay,
		log:   log,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scrape fetches page 1 to discover the page count, then every remaining page.
// A page that fails to fetch or parse is logged, recorded in FailedPages and yields no records;
// when page 1 fails the page count is unknown and the source ends there.
// Records are filtered, then de-duplicated keeping the first occurrence.
func (p *Paginator) Scrape(ctx context.Context, src Source) (*Result, error) {
	log := p.log.WithField("retailer", src.Name)

	firstURL, err := searchurl.PageURL(src.URL, src.PageParam, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to build first page URL for %s: %w", src.Name, err)
	}

	first, err := p.fetchPage(ctx, src, firstURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithFields(logrus.Fields{"page": 1, "url": firstURL}).
			Warnf("Warning: Failed to load first page, no records collected: %v", err)
		return &Result{Pages: 1, FailedPages: []int{1}}, nil
	}

	pages, err := p.pageCount(first, src.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages of %s: %w", src.Name, err)
	}

	result := &Result{Pages: pages}
	records := append([]models.CatalogRecord(nil), first.Records...)
	log.WithFields(logrus.Fields{"page": 1, "url": firstURL}).
		Infof("Fetched page %d/%d (%d records)", 1, pages, len(first.Records))

	for page := 2; page <= pages; page++ {
		if err := p.sleep(ctx, p.delay); err != nil {
			return nil, err
		}

		pageLog := log.WithField("page", page)
		pageURL, err := searchurl.PageURL(src.URL, src.PageParam, page)
		if err != nil {
			return nil, fmt.Errorf("failed to build page URL for %s: %w", src.Name, err)
		}
		pageLog = pageLog.WithField("url", pageURL)

		parsed, err := p.fetchPage(ctx, src, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			pageLog.Warnf("Warning: Failed to load page %d/%d: %v", page, pages, err)
			result.FailedPages = append(result.FailedPages, page)
			continue
		}
		if parsed.Exhausted {
			pageLog.Infof("No more results after page %d", page-1)
			break
		}

		records = append(records, parsed.Records...)
		pageLog.Infof("Fetched page %d/%d (%d records)", page, pages, len(parsed.Records))
	}

	kept := records
	if src.Filter != nil {
		kept = src.Filter.ApplyFilters(records)
	}
	result.Records = Deduplicate(kept)

	log.Infof("Scraping completed. %d records kept of %d extracted", len(result.Records), len(records))
	return result, nil
}

// fetchPage fetches and parses one results page
func (p *Paginator) fetchPage(ctx context.Context, src Source, url string) (*parser.Page, error) {
	body, err := src.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	page, err := src.Parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	return page, nil
}

// pageCount prefers a reported page total, then derives one from the item total.
// A first page that reports neither is treated as the only page.
func (p *Paginator) pageCount(first *parser.Page, pageSize int) (int, error) {
	if first.Exhausted {
		return 1, nil
	}
	if first.TotalPages > 0 {
		return first.TotalPages, nil
	}
	if first.TotalItems > 0 {
		return PageCount(first.TotalItems, pageSize)
	}
	return 1, nil
}

// Deduplicate drops records whose key was already seen, keeping the first
func Deduplicate(records []models.CatalogRecord) []models.CatalogRecord {
	seen := make(map[string]bool, len(records))
	var unique []models.CatalogRecord

	for _, record := range records {
		key := record.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, record)
	}

	return unique
}
