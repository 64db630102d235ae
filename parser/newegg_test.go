package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const neweggPageHTML = `<html><body>
<div class="list-tool-pagination"><span class="list-tool-pagination-text">Page<!-- --> <strong>1<!-- -->/<!-- -->7</strong></span></div>
<div class="item-cells-wrap">
  <div class="item-cell">
    <div class="item-container">
      <div class="item-info">
        <a class="item-title" href="https://www.newegg.ca/dell-s2721h-27/p/N82E16824260935?Item=N82E16824260935">Dell S2721H 27" Full HD IPS Monitor</a>
      </div>
      <div class="item-action"><ul class="price"><li class="price-current">$<strong>229</strong><sup>.99</sup>&nbsp;–</li></ul></div>
    </div>
  </div>
  <div class="item-cell">
    <div class="item-container">
      <div class="item-info">
        <a class="item-title" href="/dell-p2422h/p/1DK-000B-00123">Dell P2422H 24" Monitor</a>
      </div>
      <div class="item-action"><ul class="price"><li class="price-current">COMING SOON</li></ul></div>
    </div>
  </div>
  <div class="item-cell"><div class="item-sponsored">Ad</div></div>
</div>
</body></html>`

func TestNeweggParserParse(t *testing.T) {
	page, err := NewNeweggParser("https://www.newegg.ca").Parse([]byte(neweggPageHTML))
	require.NoError(t, err)

	assert.Equal(t, 7, page.TotalPages)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, `Dell S2721H 27" Full HD IPS Monitor`, first.Name)
	assert.Equal(t, "N82E16824260935", first.SKU)
	require.True(t, first.Price.Valid)
	assert.True(t, decimal.RequireFromString("229.99").Equal(first.Price.Decimal))

	second := page.Records[1]
	assert.Equal(t, "https://www.newegg.ca/dell-p2422h/p/1DK-000B-00123", second.Link)
	assert.Equal(t, "1DK-000B-00123", second.SKU)
	assert.False(t, second.Price.Valid)
}

func TestNeweggParserSinglePage(t *testing.T) {
	page, err := NewNeweggParser("https://www.newegg.ca").Parse([]byte(`<html><body><div class="item-cell"></div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Records)
}

func TestItemNumber(t *testing.T) {
	assert.Equal(t, "N82E16824260935", itemNumber("https://www.newegg.ca/p/N82E16824260935?Item=N82E16824260935"))
	assert.Equal(t, "", itemNumber(""))
	assert.Equal(t, "", itemNumber("https://www.newegg.ca/"))
}
