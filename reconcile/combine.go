package reconcile

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

// Combine builds the cross-retailer price table: one row per indexed manufacturer product
// with every reseller's price, ordered by manufacturer price. Index entries missing from the
// manufacturer catalog are skipped.
func Combine(in Input) (*models.CombinedTable, error) {
	if in.Manufacturer == nil {
		return nil, errors.New("manufacturer catalog is required")
	}

	manufacturer := indexManufacturer(in.Manufacturer, in.JoinOn)
	table := &models.CombinedTable{
		Date:    in.Date,
		Carried: make(map[string]int),
	}

	resellers := make(map[string]map[string]models.CatalogRecord, len(in.Resellers))
	for _, reseller := range in.Resellers {
		table.Retailers = append(table.Retailers, reseller.Retailer)
		table.Carried[reseller.Retailer] = 0

		bySKU := make(map[string]models.CatalogRecord, len(reseller.Records))
		for _, record := range reseller.Records {
			if _, ok := bySKU[record.SKU]; record.SKU != "" && !ok {
				bySKU[record.SKU] = record
			}
		}
		resellers[reseller.Retailer] = bySKU
	}

	for _, entry := range in.Index {
		mfr, ok := manufacturer[entry.ManufacturerKey]
		if !ok {
			continue
		}

		row := models.CombinedRow{
			Product:           mfr.Name,
			ManufacturerPrice: mfr.Price,
			RetailerPrices:    make(map[string]decimal.NullDecimal),
		}
		for _, name := range table.Retailers {
			id := entry.RetailerIDs[name]
			if id == "" {
				continue
			}
			if record, ok := resellers[name][id]; ok {
				row.RetailerPrices[name] = record.Price
				table.Carried[name]++
			}
		}
		table.Rows = append(table.Rows, row)
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i].ManufacturerPrice, table.Rows[j].ManufacturerPrice
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid {
			if c := a.Decimal.Cmp(b.Decimal); c != 0 {
				return c < 0
			}
		}
		return table.Rows[i].Product < table.Rows[j].Product
	})

	return table, nil
}
