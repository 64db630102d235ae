package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"monitor-pricewatch/config"
	"monitor-pricewatch/fetcher"
	"monitor-pricewatch/filter"
	"monitor-pricewatch/matcher"
	"monitor-pricewatch/models"
	"monitor-pricewatch/parser"
	"monitor-pricewatch/reconcile"
	"monitor-pricewatch/report"
	"monitor-pricewatch/scraper"
	"monitor-pricewatch/snapshot"
)

// ErrUnknownRetailer is returned when a requested retailer is not configured
var ErrUnknownRetailer = errors.New("unknown retailer")

// Runner executes the scrape, reconcile and combine stages for one snapshot date
type Runner struct {
	cfg        *config.Config
	sinks      *Sinks
	log        logrus.FieldLogger
	console    io.Writer
	newFetcher func(kind string, opts fetcher.Options) (fetcher.Fetcher, error)
	paginator  *scraper.Paginator
}

// NewRunner creates a new Runner. sinks may be nil to skip publishing.
func NewRunner(cfg *config.Config, sinks *Sinks, log logrus.FieldLogger) *Runner {
	return &Runner{
		cfg:        cfg,
		sinks:      sinks,
		log:        log,
		console:    os.Stdout,
		newFetcher: fetcher.New,
		paginator:  scraper.NewPaginator(cfg.Delay, log),
	}
}

// Scrape collects a snapshot for each named retailer, or for every configured retailer when none
// is named. Retailers are scraped one after another. Unreachable pages only leave gaps in a snapshot;
// a retailer that cannot be set up or whose snapshot cannot be written stops the scrape.
// Returns the written snapshot paths.
func (r *Runner) Scrape(ctx context.Context, date string, retailers ...string) ([]string, error) {
	targets, err := r.selectRetailers(retailers)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, rc := range targets {
		path, err := r.scrapeRetailer(ctx, date, rc)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *Runner) selectRetailers(names []string) ([]config.RetailerConfig, error) {
	if len(names) == 0 {
		return r.cfg.Retailers, nil
	}

	var out []config.RetailerConfig
	for _, name := range names {
		rc, ok := r.cfg.Retailer(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRetailer, name)
		}
		out = append(out, rc)
	}
	return out, nil
}

func (r *Runner) scrapeRetailer(ctx context.Context, date string, rc config.RetailerConfig) (string, error) {
	log := r.log.WithField("retailer", rc.Name)

	f, err := r.newFetcher(rc.Fetcher, fetcher.Options{
		UserAgent:        r.cfg.UserAgent,
		Timeout:          r.cfg.Timeout,
		CloudflareBypass: rc.CloudflareBypass,
		Logger:           log,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create fetcher for %s: %w", rc.Name, err)
	}
	defer func() {
		if err := fetcher.Close(f); err != nil {
			log.Warnf("Warning: Failed to close fetcher: %v", err)
		}
	}()

	p, err := parser.New(rc.Parser, rc.LinkBase)
	if err != nil {
		return "", fmt.Errorf("failed to create parser for %s: %w", rc.Name, err)
	}

	result, err := r.paginator.Scrape(ctx, scraper.Source{
		Name:      rc.Name,
		URL:       rc.URL,
		PageParam: rc.PageParam,
		PageSize:  rc.PageSize,
		Fetcher:   f,
		Parser:    p,
		Filter:    filter.NewFilter(filter.Denylist(rc.Denylist)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to scrape %s: %w", rc.Name, err)
	}
	if len(result.FailedPages) > 0 {
		log.Warnf("Warning: %d of %d pages failed: %v", len(result.FailedPages), result.Pages, result.FailedPages)
	}
	if len(result.Records) == 0 {
		log.Warn("Warning: No records scraped, writing an empty snapshot")
	}

	path, err := snapshot.WriteCatalog(r.cfg.DataDir, rc.SnapshotPrefix, models.Catalog{
		Retailer: rc.Name,
		Date:     date,
		Records:  result.Records,
	})
	if err != nil {
		return "", err
	}

	log.WithField("path", path).Infof("Saved %d records", len(result.Records))
	return path, nil
}

// loadInput reads the index and every snapshot of the date
func (r *Runner) loadInput(date string) (reconcile.Input, error) {
	mfr := r.cfg.Manufacturer()
	resellers := r.cfg.Resellers()

	columns := make(map[string]string, len(resellers))
	for _, rc := range resellers {
		columns[rc.Name] = rc.IndexColumn
	}

	index, err := snapshot.ReadIndex(r.cfg.Index.Path, r.cfg.Index.ManufacturerColumn, columns)
	if err != nil {
		return reconcile.Input{}, fmt.Errorf("failed to read index: %w", err)
	}

	manufacturer, err := snapshot.ReadCatalog(r.cfg.DataDir, mfr.SnapshotPrefix, mfr.Name, date)
	if err != nil {
		return reconcile.Input{}, fmt.Errorf("failed to read %s snapshot: %w", mfr.Name, err)
	}

	in := reconcile.Input{
		Date:         date,
		Index:        index,
		Manufacturer: manufacturer,
		JoinOn:       mfr.JoinOn,
	}
	for _, rc := range resellers {
		catalog, err := snapshot.ReadCatalog(r.cfg.DataDir, rc.SnapshotPrefix, rc.Name, date)
		if err != nil {
			return reconcile.Input{}, fmt.Errorf("failed to read %s snapshot: %w", rc.Name, err)
		}
		in.Resellers = append(in.Resellers, catalog)
	}

	return in, nil
}

func (r *Runner) resellerNames() []string {
	var names []string
	for _, rc := range r.cfg.Resellers() {
		names = append(names, rc.Name)
	}
	return names
}

// Reconcile compares the date's snapshots, writes the report files and publishes the report.
// Nothing is written or published when reconciliation fails.
func (r *Runner) Reconcile(ctx context.Context, date string) (*models.Report, error) {
	rep, err := r.reconcile(date)
	if err != nil {
		r.sinks.PublishFailure(ctx, date, err, r.log)
		return nil, err
	}

	if r.cfg.Report.Console {
		report.RenderConsole(r.console, rep)
	}
	r.sinks.Publish(ctx, rep, r.log)

	return rep, nil
}

func (r *Runner) reconcile(date string) (*models.Report, error) {
	in, err := r.loadInput(date)
	if err != nil {
		return nil, err
	}

	reconciler := reconcile.NewReconciler(reconcile.Options{
		NonCompliantBelow: r.cfg.Thresholds.NonCompliantBelow,
		TopOffenders:      r.cfg.Report.TopOffenders,
	}, r.log)

	rep, err := reconciler.Reconcile(in)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile %s: %w", date, err)
	}

	writer := report.NewWriter(r.cfg.DataDir, r.cfg.Report.XLSX, r.log)
	if _, err := writer.WriteReport(rep, r.resellerNames()); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	r.log.WithField("date", date).Infof("Compared %d products, compliance rate %s%%",
		rep.Summary.TotalProducts, rep.Summary.ComplianceRate.StringFixed(2))
	return rep, nil
}

// Combine writes the cross-retailer price table for the date and returns its path
func (r *Runner) Combine(ctx context.Context, date string) (string, error) {
	in, err := r.loadInput(date)
	if err != nil {
		return "", err
	}

	table, err := reconcile.Combine(in)
	if err != nil {
		return "", fmt.Errorf("failed to combine %s: %w", date, err)
	}

	return report.NewWriter(r.cfg.DataDir, false, r.log).WriteCombined(table)
}

// Suggest proposes index entries for reseller records the index does not reference yet
func (r *Runner) Suggest(ctx context.Context, date string) ([]matcher.Suggestion, error) {
	in, err := r.loadInput(date)
	if err != nil {
		return nil, err
	}
	return matcher.Suggest(in.Index, in.Manufacturer, in.Resellers, r.cfg.Suggest.Threshold), nil
}

// Run scrapes every retailer, then reconciles and combines the fresh snapshots.
// A scrape error stops the run before anything is compared. An unreachable retailer leaves an empty
// snapshot, and the run fails at reconciliation only when nothing at all is comparable.
func (r *Runner) Run(ctx context.Context, date string) error {
	log := r.log.WithField("date", date)
	log.Info("Starting run")

	if _, err := r.Scrape(ctx, date); err != nil {
		r.sinks.PublishFailure(ctx, date, err, r.log)
		return err
	}

	if _, err := r.Reconcile(ctx, date); err != nil {
		return err
	}

	if _, err := r.Combine(ctx, date); err != nil {
		return err
	}

	log.Info("Run completed")
	return nil
}
