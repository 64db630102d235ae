package report

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

type comparisonJSON struct {
	Date                      string                  `json:"date"`
	TotalProducts             int                     `json:"total_products"`
	TotalOffendingProducts    int                     `json:"total_offending_products"`
	TotalDeviatedProducts     int                     `json:"total_deviated_products"`
	TotalUndeterminedProducts int                     `json:"total_undetermined_products"`
	ComplianceRate            float64                 `json:"compliance_rate"`
	Retailers                 map[string]retailerJSON `json:"retailers"`
	Products                  []productJSON           `json:"products"`
}

type retailerJSON struct {
	TotalProducts             int           `json:"total_products"`
	TotalOffendingProducts    int           `json:"total_offending_products"`
	TotalDeviatedProducts     int           `json:"total_deviated_products"`
	TotalUndeterminedProducts int           `json:"total_undetermined_products"`
	ComplianceRate            float64       `json:"compliance_rate"`
	AverageDeviation          float64       `json:"average_deviation"`
	TopOffenders              []productJSON `json:"top_offenders"`
}

type productJSON struct {
	Product           string   `json:"product"`
	Retailer          string   `json:"retailer"`
	RetailerSKU       string   `json:"retailer_sku"`
	ManufacturerPrice float64  `json:"manufacturer_price"`
	RetailerPrice     *float64 `json:"retailer_price"`
	PriceDifference   *float64 `json:"price_difference"`
	Deviation         *float64 `json:"deviation"`
	Status            string   `json:"status"`
}

func round2(v decimal.Decimal) float64 {
	return v.Round(2).InexactFloat64()
}

func nullable(v decimal.NullDecimal) *float64 {
	if !v.Valid {
		return nil
	}
	f := round2(v.Decimal)
	return &f
}

func productsJSON(rows []models.ReconciledRow) []productJSON {
	out := make([]productJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, productJSON{
			Product:           row.Product,
			Retailer:          row.Retailer,
			RetailerSKU:       row.RetailerSKU,
			ManufacturerPrice: round2(row.ManufacturerPrice),
			RetailerPrice:     nullable(row.RetailerPrice),
			PriceDifference:   nullable(row.PriceDifference),
			Deviation:         nullable(row.Deviation),
			Status:            string(row.Status),
		})
	}
	return out
}

// ComparisonJSON renders the summary metrics, per-retailer summaries and ordered products
func ComparisonJSON(report *models.Report) ([]byte, error) {
	doc := comparisonJSON{
		Date:                      report.Date,
		TotalProducts:             report.Summary.TotalProducts,
		TotalOffendingProducts:    report.Summary.TotalOffendingProducts,
		TotalDeviatedProducts:     report.Summary.TotalDeviatedProducts,
		TotalUndeterminedProducts: report.Summary.TotalUndetermined,
		ComplianceRate:            round2(report.Summary.ComplianceRate),
		Retailers:                 make(map[string]retailerJSON, len(report.Retailers)),
		Products:                  productsJSON(report.Products),
	}

	for name, s := range report.Retailers {
		doc.Retailers[name] = retailerJSON{
			TotalProducts:             s.TotalProducts,
			TotalOffendingProducts:    s.TotalOffendingProducts,
			TotalDeviatedProducts:     s.TotalDeviatedProducts,
			TotalUndeterminedProducts: s.TotalUndetermined,
			ComplianceRate:            round2(s.ComplianceRate),
			AverageDeviation:          round2(s.AverageDeviation),
			TopOffenders:              productsJSON(s.TopOffenders),
		}
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(b, '\n'), nil
}
