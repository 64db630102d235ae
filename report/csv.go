package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

var comparisonHeader = []string{
	"Product", "Retailer", "Retailer_sku", "Manufacturer_price", "Retailer_price",
	"Price_difference", "Deviation", "Status",
}

// fixed renders a nullable amount with two decimals, empty when null
func fixed(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(2)
}

func comparisonRow(row models.ReconciledRow) []string {
	return []string{
		row.Product,
		row.Retailer,
		row.RetailerSKU,
		row.ManufacturerPrice.StringFixed(2),
		fixed(row.RetailerPrice),
		fixed(row.PriceDifference),
		fixed(row.Deviation),
		string(row.Status),
	}
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write rows: %w", err)
	}
	return buf.Bytes(), nil
}

// ComparisonCSV renders every reconciled row in report order
func ComparisonCSV(report *models.Report) ([]byte, error) {
	return RetailerCSV(report, "")
}

// RetailerCSV renders the reconciled rows of one retailer, or all rows when retailer is empty
func RetailerCSV(report *models.Report, retailer string) ([]byte, error) {
	rows := make([][]string, 0, len(report.Products))
	for _, row := range report.Products {
		if retailer != "" && row.Retailer != retailer {
			continue
		}
		rows = append(rows, comparisonRow(row))
	}
	return writeCSV(comparisonHeader, rows)
}

// CombinedCSV renders the cross-retailer price table. A blank retailer cell means not sold.
func CombinedCSV(table *models.CombinedTable) ([]byte, error) {
	header := []string{"Product", "Manufacturer_price"}
	for _, retailer := range table.Retailers {
		header = append(header, retailer+"_price")
	}

	rows := make([][]string, 0, len(table.Rows))
	for _, r := range table.Rows {
		row := []string{r.Product, fixed(r.ManufacturerPrice)}
		for _, retailer := range table.Retailers {
			row = append(row, fixed(r.RetailerPrices[retailer]))
		}
		rows = append(rows, row)
	}

	return writeCSV(header, rows)
}
