package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"monitor-pricewatch/models"
)

const (
	summarySheet  = "Summary"
	productsSheet = "Products"
)

// XLSX renders the report as a workbook with a Summary sheet and a Products sheet
func XLSX(report *models.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(productsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	summaryRows := [][]interface{}{
		{"Date", report.Date},
		{"Total products", report.Summary.TotalProducts},
		{"Offending products", report.Summary.TotalOffendingProducts},
		{"Deviated products", report.Summary.TotalDeviatedProducts},
		{"Undetermined products", report.Summary.TotalUndetermined},
		{"Compliance rate (%)", round2(report.Summary.ComplianceRate)},
		{},
		{"Retailer", "Products", "Offending", "Deviated", "Undetermined", "Compliance rate (%)", "Average deviation (%)"},
	}

	names := make([]string, 0, len(report.Retailers))
	for name := range report.Retailers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := report.Retailers[name]
		summaryRows = append(summaryRows, []interface{}{
			name, s.TotalProducts, s.TotalOffendingProducts, s.TotalDeviatedProducts,
			s.TotalUndetermined, round2(s.ComplianceRate), round2(s.AverageDeviation),
		})
	}
	if err := setRows(f, summarySheet, summaryRows); err != nil {
		return nil, err
	}

	productRows := [][]interface{}{{
		"Product", "Retailer", "Retailer SKU", "Manufacturer price", "Retailer price",
		"Price difference", "Deviation (%)", "Status",
	}}
	for _, row := range report.Products {
		productRows = append(productRows, []interface{}{
			row.Product,
			row.Retailer,
			row.RetailerSKU,
			round2(row.ManufacturerPrice),
			cellValue(nullable(row.RetailerPrice)),
			cellValue(nullable(row.PriceDifference)),
			cellValue(nullable(row.Deviation)),
			string(row.Status),
		})
	}
	if err := setRows(f, productsSheet, productRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue leaves null amounts as empty cells
func cellValue(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
