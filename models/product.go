package models

import (
	"github.com/shopspring/decimal"
)

// Role tells whether a retailer is the manufacturer (price baseline) or a reseller
type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleReseller     Role = "reseller"
)

// CatalogRecord represents one product card scraped from a retailer
type CatalogRecord struct {
	Name  string
	SKU   string
	Price decimal.NullDecimal // Valid is false when the price could not be parsed
	Link  string
	Specs []string // Spec labels shown on the card (manufacturer only)
}

// Key returns the identity used to de-duplicate records within a catalog
func (r CatalogRecord) Key() string {
	if r.SKU != "" {
		return "sku:" + r.SKU
	}
	if r.Link != "" {
		return "link:" + r.Link
	}
	return "name:" + r.Name
}

// Catalog is one retailer's snapshot for one date
type Catalog struct {
	Retailer string
	Date     string // YYYYMMDD
	Records  []CatalogRecord
}

// IndexEntry links a manufacturer product to each reseller's identifier for it
type IndexEntry struct {
	ManufacturerKey string
	RetailerIDs     map[string]string // retailer name -> identifier, absent when not carried
}

// Status is the compliance classification of a reconciled row
type Status string

const (
	StatusCompliant      Status = "Compliant"
	StatusNeedsAttention Status = "Needs Attention"
	StatusNonCompliant   Status = "Non-Compliant"
	StatusUndetermined   Status = "Undetermined"
)

// ReconciledRow is the comparison of one reseller price against the manufacturer price
type ReconciledRow struct {
	Product           string
	Retailer          string
	RetailerSKU       string
	ManufacturerPrice decimal.Decimal
	RetailerPrice     decimal.NullDecimal
	PriceDifference   decimal.NullDecimal
	Deviation         decimal.NullDecimal // percent of the manufacturer price
	Status            Status
}

// Comparable reports whether the row has a deviation to classify
func (r ReconciledRow) Comparable() bool {
	return r.Deviation.Valid
}

// Summary holds the aggregate metrics of a set of reconciled rows
type Summary struct {
	TotalProducts          int
	TotalOffendingProducts int
	TotalDeviatedProducts  int
	TotalUndetermined      int
	ComplianceRate         decimal.Decimal // percent, rounded to 2 places
}

// RetailerSummary extends Summary with per-retailer dashboard figures
type RetailerSummary struct {
	Summary
	AverageDeviation decimal.Decimal
	TopOffenders     []ReconciledRow
}

// Report is the full output of one reconciliation
type Report struct {
	Date      string
	Summary   Summary
	Retailers map[string]RetailerSummary
	Products  []ReconciledRow // sorted by deviation ascending
}

// CombinedRow lists every retailer's price for one manufacturer product
type CombinedRow struct {
	Product           string
	ManufacturerPrice decimal.NullDecimal
	RetailerPrices    map[string]decimal.NullDecimal // absent when not sold by that retailer
}

// CombinedTable is the cross-retailer price table for one date
type CombinedTable struct {
	Date      string
	Retailers []string
	Rows      []CombinedRow
	Carried   map[string]int // number of products each retailer sells
}
