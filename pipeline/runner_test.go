package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitor-pricewatch/config"
	"monitor-pricewatch/db"
	"monitor-pricewatch/fetcher"
	"monitor-pricewatch/models"
	"monitor-pricewatch/reconcile"
	"monitor-pricewatch/snapshot"
)

const (
	dellURL    = "https://dell.test/search?p=1"
	bestbuyURL = "https://bestbuy.test/api?page=1"
	testDate   = "20240315"
)

const dellPage = `<html><body>
<p class="pageinfo">1 - 4 of 4 results</p>
<article class="ps-stack">
  <h3 class="ps-title"><a href="/shop/s2721h">Dell 27 Monitor - S2721H</a></h3>
  <div class="ps-product-detail-info">Order Code: 210-AXKQ</div>
  <div class="ps-dell-price">$200.00</div>
</article>
<article class="ps-stack">
  <h3 class="ps-title"><a href="/shop/p2422h">Dell 24 Monitor - P2422H</a></h3>
  <div class="ps-product-detail-info">Order Code: 210-AZYX</div>
  <div class="ps-dell-price">$200.00</div>
</article>
<article class="ps-stack">
  <h3 class="ps-title"><a href="/shop/u2723qe">Dell UltraSharp 27 4K Monitor - U2723QE</a></h3>
  <div class="ps-product-detail-info">Order Code: 210-BCXK</div>
  <div class="ps-dell-price">$200.00</div>
</article>
<article class="ps-stack">
  <h3 class="ps-title"><a href="/shop/cable">Dell USB-C Cable</a></h3>
  <div class="ps-dell-price">$20.00</div>
</article>
</body></html>`

const bestbuyPage = `{
	"total": 4,
	"totalPages": 1,
	"products": [
		{"sku": "BB1", "name": "Dell 27\" Monitor (S2721H)", "salePrice": 190},
		{"sku": "BB2", "name": "Dell 24\" Monitor (P2422H)", "salePrice": 170},
		{"sku": "BB3", "name": "Dell UltraSharp 27\" 4K (U2723QE)", "salePrice": null},
		{"sku": "BB4", "name": "Dell 34\" Curved Monitor (S3422DW)", "salePrice": 400}
	]
}`

const indexCSV = `Dell_product,Bestbuy_sku
Dell 27 Monitor - S2721H,BB1
Dell 24 Monitor - P2422H,BB2
Dell UltraSharp 27 4K Monitor - U2723QE,BB3
Dell 32 Monitor - S3221QS,
`

// fakeFetcher serves bodies keyed by URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	kinds  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, ok := f.bodies[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: 503}
	}
	return []byte(body), nil
}

func (f *fakeFetcher) factory(kind string, opts fetcher.Options) (fetcher.Fetcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return f, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.csv")
	require.NoError(t, os.WriteFile(indexPath, []byte(indexCSV), 0o644))

	return &config.Config{
		DataDir:   filepath.Join(dir, "data"),
		UserAgent: config.DefaultUserAgent,
		Index:     config.IndexConfig{Path: indexPath, ManufacturerColumn: "Dell_product"},
		Retailers: []config.RetailerConfig{
			{
				Name: "dell", Role: models.RoleManufacturer, Parser: "dell", Fetcher: "colly",
				URL: dellURL, PageParam: "p", PageSize: 12, SnapshotPrefix: "official_dell_monitor",
				JoinOn: "name", LinkBase: "https://dell.test", Denylist: []string{"cable"},
			},
			{
				Name: "bestbuy", Role: models.RoleReseller, Parser: "bestbuy", Fetcher: "resty",
				URL: bestbuyURL, PageParam: "page", PageSize: 24, SnapshotPrefix: "bestbuy_dell_monitor",
				IndexColumn: "Bestbuy_sku", LinkBase: "https://bestbuy.test/p/",
			},
		},
		Thresholds: config.ThresholdConfig{NonCompliantBelow: -10},
		Report:     config.ReportConfig{Console: true, TopOffenders: 5},
		Suggest:    config.SuggestConfig{Threshold: 0.85},
	}
}

func newTestRunner(t *testing.T, cfg *config.Config, bodies map[string]string, sinks *Sinks) (*Runner, *fakeFetcher, *bytes.Buffer) {
	t.Helper()

	log, _ := test.NewNullLogger()
	f := &fakeFetcher{bodies: bodies}
	var console bytes.Buffer

	r := NewRunner(cfg, sinks, log)
	r.newFetcher = f.factory
	r.console = &console
	return r, f, &console
}

func allPages() map[string]string {
	return map[string]string{dellURL: dellPage, bestbuyURL: bestbuyPage}
}

func newHistory(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewDB(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestScrapeWritesSnapshots(t *testing.T) {
	cfg := testConfig(t)
	r, f, _ := newTestRunner(t, cfg, allPages(), nil)

	paths, err := r.Scrape(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, []string{
		snapshot.Path(cfg.DataDir, "official_dell_monitor", testDate),
		snapshot.Path(cfg.DataDir, "bestbuy_dell_monitor", testDate),
	}, paths)
	assert.Equal(t, []string{"colly", "resty"}, f.kinds)

	dell, err := snapshot.ReadCatalog(cfg.DataDir, "official_dell_monitor", "dell", testDate)
	require.NoError(t, err)
	require.Len(t, dell.Records, 3, "denylisted cable is dropped")
	assert.Equal(t, "210-AXKQ", dell.Records[0].SKU)
	assert.Equal(t, "https://dell.test/shop/s2721h", dell.Records[0].Link)

	bestbuy, err := snapshot.ReadCatalog(cfg.DataDir, "bestbuy_dell_monitor", "bestbuy", testDate)
	require.NoError(t, err)
	require.Len(t, bestbuy.Records, 4)
	assert.False(t, bestbuy.Records[2].Price.Valid)
}

func TestScrapeSelectedRetailer(t *testing.T) {
	cfg := testConfig(t)
	r, f, _ := newTestRunner(t, cfg, allPages(), nil)

	paths, err := r.Scrape(context.Background(), testDate, "bestbuy")
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assert.Equal(t, []string{"resty"}, f.kinds)

	_, err = r.Scrape(context.Background(), testDate, "walmart")
	assert.True(t, errors.Is(err, ErrUnknownRetailer))
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	history := newHistory(t)
	r, _, console := newTestRunner(t, cfg, allPages(), &Sinks{History: history})

	require.NoError(t, r.Run(context.Background(), testDate))

	for _, name := range []string{
		"comparison_20240315.csv",
		"comparison_20240315.json",
		"bestbuy_comparison_20240315.csv",
		"combined_product_data_20240315.csv",
	} {
		assert.FileExists(t, filepath.Join(cfg.DataDir, name))
	}
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "comparison_20240315.xlsx"))

	csvData, err := os.ReadFile(filepath.Join(cfg.DataDir, "comparison_20240315.csv"))
	require.NoError(t, err)
	want := "Product,Retailer,Retailer_sku,Manufacturer_price,Retailer_price,Price_difference,Deviation,Status\n" +
		"Dell 24 Monitor - P2422H,bestbuy,BB2,200.00,170.00,-30.00,-15.00,Non-Compliant\n" +
		"Dell 27 Monitor - S2721H,bestbuy,BB1,200.00,190.00,-10.00,-5.00,Needs Attention\n" +
		"Dell UltraSharp 27 4K Monitor - U2723QE,bestbuy,BB3,200.00,,,,Undetermined\n"
	assert.Equal(t, want, string(csvData))

	assert.Contains(t, console.String(), "Price compliance for 20240315")

	runs, err := history.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunDone, runs[0].Status)
	assert.Equal(t, 2, runs[0].TotalProducts)
	assert.Equal(t, 2, runs[0].OffendingProducts)
	assert.Equal(t, 1, runs[0].Undetermined)

	rows, err := history.GetComparisons(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	r, _, _ := newTestRunner(t, cfg, allPages(), nil)

	require.NoError(t, r.Run(context.Background(), testDate))
	first, err := os.ReadFile(filepath.Join(cfg.DataDir, "comparison_20240315.json"))
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), testDate))
	second, err := os.ReadFile(filepath.Join(cfg.DataDir, "comparison_20240315.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunWithUnreachableRetailer(t *testing.T) {
	cfg := testConfig(t)
	history := newHistory(t)
	r, _, _ := newTestRunner(t, cfg, map[string]string{dellURL: dellPage}, &Sinks{History: history})

	err := r.Run(context.Background(), testDate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconcile.ErrNoComparableRows))

	catalog, err := snapshot.ReadCatalog(cfg.DataDir, "bestbuy_dell_monitor", "bestbuy", testDate)
	require.NoError(t, err)
	assert.Empty(t, catalog.Records)
	assert.FileExists(t, snapshot.Path(cfg.DataDir, "official_dell_monitor", testDate))
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "comparison_20240315.csv"))

	runs, err := history.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].LastError.String, "no comparable rows")
}

func TestRunStopsOnScrapeError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retailers[1].Fetcher = "curl"
	history := newHistory(t)

	log, _ := test.NewNullLogger()
	r := NewRunner(cfg, &Sinks{History: history}, log)
	f := &fakeFetcher{bodies: allPages()}
	r.newFetcher = func(kind string, opts fetcher.Options) (fetcher.Fetcher, error) {
		if kind == "curl" {
			return nil, fetcher.ErrUnknownFetcher
		}
		return f, nil
	}

	err := r.Run(context.Background(), testDate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetcher.ErrUnknownFetcher))
	assert.Contains(t, err.Error(), "failed to create fetcher for bestbuy")
	assert.NoFileExists(t, snapshot.Path(cfg.DataDir, "bestbuy_dell_monitor", testDate))

	runs, err := history.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunFailed, runs[0].Status)
}

func TestReconcileMissingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	r, _, console := newTestRunner(t, cfg, allPages(), nil)

	_, err := r.Scrape(context.Background(), testDate, "dell")
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), testDate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrSnapshotMissing))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, console.String())
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "comparison_20240315.json"))
}

func TestCombine(t *testing.T) {
	cfg := testConfig(t)
	r, _, _ := newTestRunner(t, cfg, allPages(), nil)

	_, err := r.Scrape(context.Background(), testDate)
	require.NoError(t, err)

	path, err := r.Combine(context.Background(), testDate)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Product,Manufacturer_price,bestbuy_price\n"+
		"Dell 24 Monitor - P2422H,200.00,170.00\n"+
		"Dell 27 Monitor - S2721H,200.00,190.00\n"+
		"Dell UltraSharp 27 4K Monitor - U2723QE,200.00,\n", string(data))
}

func TestSuggest(t *testing.T) {
	cfg := testConfig(t)
	r, _, _ := newTestRunner(t, cfg, allPages(), nil)

	_, err := r.Scrape(context.Background(), testDate)
	require.NoError(t, err)

	suggestions, err := r.Suggest(context.Background(), testDate)
	require.NoError(t, err)
	for _, s := range suggestions {
		assert.NotEqual(t, "BB1", s.RetailerSKU, "indexed SKUs are not suggested")
		assert.GreaterOrEqual(t, s.Score, 0.85)
	}
}

func TestSinksPublishIgnoresNil(t *testing.T) {
	var sinks *Sinks
	log := logrus.New()
	sinks.Publish(context.Background(), &models.Report{Date: testDate}, log)
	sinks.PublishFailure(context.Background(), testDate, fmt.Errorf("boom"), log)
	assert.NoError(t, sinks.Close())
}
