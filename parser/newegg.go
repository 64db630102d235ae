package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"monitor-pricewatch/models"
)

// "Page 1/7"
var neweggPagesPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// NeweggParser extracts item cells from newegg.ca product list pages
type NeweggParser struct {
	linkBase string
}

// NewNeweggParser creates a new NeweggParser instance
func NewNeweggParser(linkBase string) *NeweggParser {
	return &NeweggParser{linkBase: linkBase}
}

// Parse extracts one record per item cell. A page without pagination text is a single page.
func (p *NeweggParser) Parse(body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{TotalPages: p.totalPages(doc)}

	doc.Find("div.item-cell").Each(func(i int, cell *goquery.Selection) {
		if record, ok := p.extractRecord(cell); ok {
			page.Records = append(page.Records, record)
		}
	})

	return page, nil
}

func (p *NeweggParser) totalPages(doc *goquery.Document) int {
	pagination := doc.Find("span.list-tool-pagination-text").First()
	if pagination.Length() == 0 {
		return 1
	}
	matches := neweggPagesPattern.FindStringSubmatch(normalizeWhitespace(pagination.Text()))
	if len(matches) < 3 {
		return 1
	}
	pages, err := strconv.Atoi(matches[2])
	if err != nil || pages < 1 {
		return 1
	}
	return pages
}

func (p *NeweggParser) extractRecord(cell *goquery.Selection) (models.CatalogRecord, bool) {
	info := cell.Find("div.item-info").First()
	if info.Length() == 0 {
		return models.CatalogRecord{}, false
	}

	title := info.Find("a.item-title").First()
	name := normalizeWhitespace(title.Text())
	if name == "" {
		return models.CatalogRecord{}, false
	}

	link := absoluteLink(p.linkBase, title.AttrOr("href", ""))
	return models.CatalogRecord{
		Name:  name,
		SKU:   itemNumber(link),
		Price: ParsePrice(cell.Find("li.price-current").First().Text()),
		Link:  link,
	}, true
}

// itemNumber returns the last path segment of a product link, e.g. N82E16824260935
func itemNumber(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
