package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestBuyParserParse(t *testing.T) {
	body := `{
		"currentPage": 1,
		"total": 50,
		"totalPages": 3,
		"products": [
			{"sku": "15324508", "name": "Dell 27\" FHD 75Hz IPS Monitor (S2721H)", "salePrice": 219.99},
			{"sku": 16071592, "name": "Dell 24\" Monitor (P2422H)", "salePrice": null},
			{"sku": "", "name": "  ", "salePrice": 10}
		]
	}`

	page, err := NewBestBuyParser("https://www.bestbuy.ca/en-ca/product/").Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, 50, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.Exhausted)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "15324508", first.SKU)
	assert.Equal(t, "https://www.bestbuy.ca/en-ca/product/15324508", first.Link)
	require.True(t, first.Price.Valid)
	assert.True(t, decimal.RequireFromString("219.99").Equal(first.Price.Decimal))

	second := page.Records[1]
	assert.Equal(t, "16071592", second.SKU)
	assert.False(t, second.Price.Valid)
}

func TestBestBuyParserPlaceholderPrice(t *testing.T) {
	body := `{"products": [
		{"sku": "1", "name": "Dell A", "salePrice": "N/A"},
		{"sku": "2", "name": "Dell B", "salePrice": ""},
		{"sku": "3", "name": "Dell C", "salePrice": "249.99"},
		{"sku": "4", "name": "Dell D", "salePrice": 199.99},
		{"sku": "5", "name": "Dell E"}
	]}`

	page, err := NewBestBuyParser("https://www.bestbuy.ca/en-ca/product/").Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, page.Records, 5)

	tests := []struct {
		sku   string
		want  string
		valid bool
	}{
		{"1", "", false},
		{"2", "", false},
		{"3", "249.99", true},
		{"4", "199.99", true},
		{"5", "", false},
	}
	for i, tt := range tests {
		t.Run(tt.sku, func(t *testing.T) {
			record := page.Records[i]
			assert.Equal(t, tt.sku, record.SKU)
			require.Equal(t, tt.valid, record.Price.Valid)
			if tt.valid {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(record.Price.Decimal))
			}
		})
	}
}

func TestBestBuyParserEmptyPage(t *testing.T) {
	page, err := NewBestBuyParser("https://www.bestbuy.ca/en-ca/product/").Parse([]byte(`{"total": 50, "products": []}`))
	require.NoError(t, err)
	assert.True(t, page.Exhausted)
	assert.Empty(t, page.Records)
}

func TestBestBuyParserInvalidJSON(t *testing.T) {
	_, err := NewBestBuyParser("").Parse([]byte(`<html>blocked</html>`))
	assert.Error(t, err)
}
