package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"monitor-pricewatch/models"
)

// RenderConsole prints the summary, the per-retailer figures and the ordered product table
func RenderConsole(w io.Writer, report *models.Report) {
	s := report.Summary
	fmt.Fprintf(w, "Price compliance for %s\n", report.Date)
	fmt.Fprintf(w, "Products: %d  Offending: %d  Deviated: %d  Undetermined: %d  Compliance: %s%%\n\n",
		s.TotalProducts, s.TotalOffendingProducts, s.TotalDeviatedProducts, s.TotalUndetermined,
		s.ComplianceRate.StringFixed(2))

	if len(report.Retailers) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Retailer", "Products", "Offending", "Compliance %", "Avg deviation %"})

		names := make([]string, 0, len(report.Retailers))
		for name := range report.Retailers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r := report.Retailers[name]
			t.AppendRow(table.Row{name, r.TotalProducts, r.TotalOffendingProducts,
				r.ComplianceRate.StringFixed(2), r.AverageDeviation.StringFixed(2)})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Product", "Retailer", "Manufacturer price", "Retailer price", "Difference", "Deviation %", "Status"})
	for _, row := range report.Products {
		t.AppendRow(table.Row{
			row.Product,
			row.Retailer,
			row.ManufacturerPrice.StringFixed(2),
			fixed(row.RetailerPrice),
			fixed(row.PriceDifference),
			fixed(row.Deviation),
			string(row.Status),
		})
	}
	t.Render()
}
