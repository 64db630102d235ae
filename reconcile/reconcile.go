package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"monitor-pricewatch/models"
)

var (
	// ErrZeroManufacturerPrice is returned when a matched manufacturer price is zero
	ErrZeroManufacturerPrice = errors.New("manufacturer price is zero")
	// ErrNoComparableRows is returned when no row has both prices
	ErrNoComparableRows = errors.New("no comparable rows")
)

var hundred = decimal.NewFromInt(100)

// Join fields for matching index entries to the manufacturer catalog
const (
	JoinOnName = "name"
	JoinOnSKU  = "sku"
)

// Input is everything one reconciliation reads
type Input struct {
	Date         string
	Index        []models.IndexEntry
	Manufacturer *models.Catalog
	JoinOn       string            // JoinOnName or JoinOnSKU
	Resellers    []*models.Catalog // Retailer names must match the index retailer ids
}

// Options tunes classification and per-retailer summaries
type Options struct {
	NonCompliantBelow float64 // deviation percent below which a row is Non-Compliant
	TopOffenders      int
}

// Reconciler joins reseller catalogs against the manufacturer catalog through the index
type Reconciler struct {
	classifier   Classifier
	topOffenders int
	log          logrus.FieldLogger
}

// NewReconciler creates a new Reconciler instance
func NewReconciler(opts Options, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{
		classifier:   NewClassifier(opts.NonCompliantBelow),
		topOffenders: opts.TopOffenders,
		log:          log,
	}
}

// Reconcile produces the full report for every reseller. Nothing is returned on error.
func (r *Reconciler) Reconcile(in Input) (*models.Report, error) {
	if in.Manufacturer == nil {
		return nil, errors.New("manufacturer catalog is required")
	}

	report := &models.Report{
		Date:      in.Date,
		Retailers: make(map[string]models.RetailerSummary),
	}

	for _, reseller := range in.Resellers {
		rows, err := r.ReconcileRetailer(in, reseller)
		if err != nil {
			return nil, err
		}

		log := r.log.WithField("retailer", reseller.Retailer)
		summary, err := r.summarizeRetailer(rows)
		if errors.Is(err, ErrNoComparableRows) {
			log.Warnf("Warning: No comparable rows for %s, omitting retailer summary", reseller.Retailer)
		} else if err != nil {
			return nil, err
		} else {
			report.Retailers[reseller.Retailer] = summary
		}
		log.Debugf("Reconciled %d rows for %s", len(rows), reseller.Retailer)

		report.Products = append(report.Products, rows...)
	}

	summary, err := Summarize(report.Products)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", in.Date, err)
	}
	report.Summary = summary

	SortRows(report.Products)
	return report, nil
}

// ReconcileRetailer joins one reseller catalog. Index entries the reseller does not carry,
// whose reseller record is missing, or whose manufacturer record or price is missing are dropped.
func (r *Reconciler) ReconcileRetailer(in Input, reseller *models.Catalog) ([]models.ReconciledRow, error) {
	manufacturer := indexManufacturer(in.Manufacturer, in.JoinOn)
	bySKU := make(map[string]models.CatalogRecord, len(reseller.Records))
	for _, record := range reseller.Records {
		if record.SKU == "" {
			continue
		}
		if _, ok := bySKU[record.SKU]; !ok {
			bySKU[record.SKU] = record
		}
	}

	var rows []models.ReconciledRow
	for _, entry := range in.Index {
		id, ok := entry.RetailerIDs[reseller.Retailer]
		if !ok || id == "" {
			continue
		}
		retailerRecord, ok := bySKU[id]
		if !ok {
			continue
		}
		manufacturerRecord, ok := manufacturer[entry.ManufacturerKey]
		if !ok || !manufacturerRecord.Price.Valid {
			continue
		}

		row, err := r.compare(manufacturerRecord, retailerRecord, reseller.Retailer)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (r *Reconciler) compare(manufacturer, retailer models.CatalogRecord, retailerName string) (models.ReconciledRow, error) {
	mp := manufacturer.Price.Decimal
	if mp.IsZero() {
		return models.ReconciledRow{}, fmt.Errorf("%w: %s", ErrZeroManufacturerPrice, manufacturer.Name)
	}

	row := models.ReconciledRow{
		Product:           manufacturer.Name,
		Retailer:          retailerName,
		RetailerSKU:       retailer.SKU,
		ManufacturerPrice: mp,
		RetailerPrice:     retailer.Price,
	}

	if retailer.Price.Valid {
		diff := retailer.Price.Decimal.Sub(mp)
		row.PriceDifference = decimal.NewNullDecimal(diff)
		row.Deviation = decimal.NewNullDecimal(Deviation(mp, retailer.Price.Decimal))
	}
	row.Status = r.classifier.Classify(row.Deviation)

	return row, nil
}

// Deviation returns (retailer - manufacturer) / manufacturer * 100.
// The manufacturer price must be non-zero.
func Deviation(manufacturer, retailer decimal.Decimal) decimal.Decimal {
	return retailer.Sub(manufacturer).Div(manufacturer).Mul(hundred)
}

// indexManufacturer keys manufacturer records by the join field, keeping the first
func indexManufacturer(catalog *models.Catalog, joinOn string) map[string]models.CatalogRecord {
	out := make(map[string]models.CatalogRecord, len(catalog.Records))
	for _, record := range catalog.Records {
		key := record.Name
		if joinOn == JoinOnSKU {
			key = record.SKU
		}
		if key == "" {
			continue
		}
		if _, ok := out[key]; !ok {
			out[key] = record
		}
	}
	return out
}

// Summarize computes the aggregate metrics over comparable rows.
// Rows without a deviation are only counted as undetermined.
func Summarize(rows []models.ReconciledRow) (models.Summary, error) {
	var s models.Summary
	exact := 0

	for _, row := range rows {
		if !row.Comparable() {
			s.TotalUndetermined++
			continue
		}
		s.TotalProducts++

		diff := row.PriceDifference.Decimal
		switch {
		case diff.IsNegative():
			s.TotalOffendingProducts++
			s.TotalDeviatedProducts++
		case diff.IsPositive():
			s.TotalDeviatedProducts++
		default:
			exact++
		}
	}

	if s.TotalProducts == 0 {
		return s, ErrNoComparableRows
	}

	s.ComplianceRate = decimal.NewFromInt(int64(exact)).
		Div(decimal.NewFromInt(int64(s.TotalProducts))).
		Mul(hundred).
		Round(2)
	return s, nil
}

func (r *Reconciler) summarizeRetailer(rows []models.ReconciledRow) (models.RetailerSummary, error) {
	summary, err := Summarize(rows)
	if err != nil {
		return models.RetailerSummary{}, err
	}

	total := decimal.Zero
	var offenders []models.ReconciledRow
	for _, row := range rows {
		if !row.Comparable() {
			continue
		}
		total = total.Add(row.Deviation.Decimal)
		if row.PriceDifference.Decimal.IsNegative() {
			offenders = append(offenders, row)
		}
	}

	SortRows(offenders)
	if r.topOffenders >= 0 && len(offenders) > r.topOffenders {
		offenders = offenders[:r.topOffenders]
	}

	return models.RetailerSummary{
		Summary:          summary,
		AverageDeviation: total.Div(decimal.NewFromInt(int64(summary.TotalProducts))).Round(2),
		TopOffenders:     offenders,
	}, nil
}

// SortRows orders rows by deviation ascending, then product, then retailer.
// Rows without a deviation go last.
func SortRows(rows []models.ReconciledRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Comparable() != b.Comparable() {
			return a.Comparable()
		}
		if a.Comparable() {
			if c := a.Deviation.Decimal.Cmp(b.Deviation.Decimal); c != 0 {
				return c < 0
			}
		}
		if a.Product != b.Product {
			return a.Product < b.Product
		}
		return a.Retailer < b.Retailer
	})
}
