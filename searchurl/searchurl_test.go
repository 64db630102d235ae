package searchurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		param string
		page  int
		want  string
	}{
		{
			name:  "replaces existing page",
			url:   "https://www.dell.com/en-ca/search/monitor?p=1&t=Product",
			param: "p",
			page:  3,
			want:  "https://www.dell.com/en-ca/search/monitor?p=3&t=Product",
		},
		{
			name:  "adds missing page",
			url:   "https://www.bestbuy.ca/api/v2/json/search?query=dell+monitor",
			param: "page",
			page:  2,
			want:  "https://www.bestbuy.ca/api/v2/json/search?page=2&query=dell+monitor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PageURL(tt.url, tt.param, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageURLInvalid(t *testing.T) {
	_, err := PageURL("https://www.newegg.ca/p/pl?d=monitor", "page", 0)
	assert.Error(t, err)

	_, err = PageURL("https://www.newegg.ca/p/pl?d=monitor", "", 1)
	assert.Error(t, err)

	_, err = PageURL("://bad", "page", 1)
	assert.Error(t, err)
}
