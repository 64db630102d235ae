package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"monitor-pricewatch/models"
)

var (
	// "1 - 12 of 37 results"
	dellTotalPattern = regexp.MustCompile(`(?i)of\s+([\d,]+)`)
	dellOrderCode    = regexp.MustCompile(`(?i)^\s*order\s*code\s*:?\s*`)
)

// DellParser extracts product cards from dell.com search result pages
type DellParser struct {
	linkBase string
}

// NewDellParser creates a new DellParser instance
func NewDellParser(linkBase string) *DellParser {
	return &DellParser{linkBase: linkBase}
}

// Parse extracts one record per product card and the reported result count
func (p *DellParser) Parse(body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{TotalItems: p.totalItems(doc)}

	doc.Find("article.ps-stack").Each(func(i int, card *goquery.Selection) {
		if record, ok := p.extractRecord(card); ok {
			page.Records = append(page.Records, record)
		}
	})

	return page, nil
}

func (p *DellParser) totalItems(doc *goquery.Document) int {
	text := normalizeWhitespace(doc.Find("p.pageinfo").First().Text())
	matches := dellTotalPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return 0
	}
	total, err := strconv.Atoi(strings.ReplaceAll(matches[1], ",", ""))
	if err != nil {
		return 0
	}
	return total
}

func (p *DellParser) extractRecord(card *goquery.Selection) (models.CatalogRecord, bool) {
	title := card.Find("h3.ps-title").First()
	name := normalizeWhitespace(title.Text())
	if name == "" {
		return models.CatalogRecord{}, false
	}

	record := models.CatalogRecord{
		Name: name,
		Link: absoluteLink(p.linkBase, title.Find("a").First().AttrOr("href", "")),
	}

	orderCode := normalizeWhitespace(card.Find("div.ps-product-detail-info").First().Text())
	record.SKU = strings.TrimSpace(dellOrderCode.ReplaceAllString(orderCode, ""))

	// Only the first price block holds the Dell price; later ones are bundle or financing offers
	record.Price = ParsePrice(card.Find("div.ps-dell-price").First().Text())

	card.Find(".ps-snp-tech-specs span.ps-iconography-specs-label").Each(func(i int, s *goquery.Selection) {
		if spec := normalizeWhitespace(s.Text()); spec != "" {
			record.Specs = append(record.Specs, spec)
		}
	})

	return record, true
}
