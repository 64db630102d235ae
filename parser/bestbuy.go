package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

// BestBuyParser decodes bestbuy.ca search API responses
type BestBuyParser struct {
	linkBase string
}

// NewBestBuyParser creates a new BestBuyParser instance
func NewBestBuyParser(linkBase string) *BestBuyParser {
	return &BestBuyParser{linkBase: linkBase}
}

type bestBuyResponse struct {
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
	Products   []bestBuyProduct `json:"products"`
}

type bestBuyProduct struct {
	Name      string     `json:"name"`
	SKU       flexString `json:"sku"`
	SalePrice flexString `json:"salePrice"` // number, or a placeholder such as "N/A"
}

// flexString accepts both quoted and bare JSON scalars
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(data)))
	return nil
}

// Parse decodes one page of search results. An empty product list marks the end of results.
func (p *BestBuyParser) Parse(body []byte) (*Page, error) {
	var resp bestBuyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	page := &Page{
		TotalItems: resp.Total,
		TotalPages: resp.TotalPages,
		Exhausted:  len(resp.Products) == 0,
	}

	for _, product := range resp.Products {
		name := normalizeWhitespace(product.Name)
		if name == "" {
			continue
		}
		sku := strings.TrimSpace(string(product.SKU))

		record := models.CatalogRecord{
			Name: name,
			SKU:  sku,
		}
		if sku != "" {
			record.Link = strings.TrimRight(p.linkBase, "/") + "/" + sku
		}
		if price, err := decimal.NewFromString(string(product.SalePrice)); err == nil && !price.IsNegative() {
			record.Price = decimal.NewNullDecimal(price)
		}
		page.Records = append(page.Records, record)
	}

	return page, nil
}
