package snapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"monitor-pricewatch/models"
)

// DateLayout is the YYYYMMDD stamp used in every snapshot and report file name
const DateLayout = "20060102"

// SpecSeparator joins a record's spec labels inside one CSV cell
const SpecSeparator = "|"

// ErrSnapshotMissing is returned when a snapshot or index file does not exist
var ErrSnapshotMissing = fmt.Errorf("snapshot missing: %w", os.ErrNotExist)

var catalogHeader = []string{"name", "sku", "price", "link", "specs"}

// FormatDate returns the snapshot date stamp for t
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate validates a YYYYMMDD date stamp
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYYMMDD: %w", s, err)
	}
	return FormatDate(t), nil
}

// Path returns the snapshot file for a retailer prefix and date
func Path(dir, prefix, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, date))
}

// WriteFileAtomic writes through a temp file in the same directory and renames it into place,
// so readers never observe a partially written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// FormatPrice renders a price with two decimals, or empty when null
func FormatPrice(price decimal.NullDecimal) string {
	if !price.Valid {
		return ""
	}
	return price.Decimal.StringFixed(2)
}

// WriteCatalog saves a catalog as <dir>/<prefix>_<date>.csv and returns the path
func WriteCatalog(dir, prefix string, catalog models.Catalog) (string, error) {
	if catalog.Date == "" {
		return "", errors.New("catalog date is required")
	}
	path := Path(dir, prefix, catalog.Date)

	err := WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(catalogHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		for _, r := range catalog.Records {
			row := []string{r.Name, r.SKU, FormatPrice(r.Price), r.Link, strings.Join(r.Specs, SpecSeparator)}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return path, nil
}

// ReadCatalog loads the snapshot written by WriteCatalog. Records repeating an earlier key are dropped.
func ReadCatalog(dir, prefix, retailer, date string) (*models.Catalog, error) {
	path := Path(dir, prefix, date)
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := table.require("name", "sku", "price", "link"); err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}

	catalog := &models.Catalog{Retailer: retailer, Date: date}
	seen := make(map[string]bool)

	for i, row := range table.rows {
		record := models.CatalogRecord{
			Name: row["name"],
			SKU:  row["sku"],
			Link: row["link"],
		}
		if priceStr := row["price"]; priceStr != "" {
			price, err := decimal.NewFromString(priceStr)
			if err != nil {
				return nil, fmt.Errorf("invalid price %q on line %d of %s: %w", priceStr, i+2, path, err)
			}
			record.Price = decimal.NewNullDecimal(price)
		}
		if specs := row["specs"]; specs != "" {
			record.Specs = strings.Split(specs, SpecSeparator)
		}

		key := record.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		catalog.Records = append(catalog.Records, record)
	}

	return catalog, nil
}

// ReadIndex loads the cross-retailer index. columns maps a retailer name to its identifier column.
// Blank identifiers mean the retailer does not carry the product.
func ReadIndex(path, manufacturerColumn string, columns map[string]string) ([]models.IndexEntry, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}

	required := []string{manufacturerColumn}
	for _, column := range columns {
		required = append(required, column)
	}
	if err := table.require(required...); err != nil {
		return nil, fmt.Errorf("invalid index %s: %w", path, err)
	}

	var entries []models.IndexEntry
	seen := make(map[string]int)

	for i, row := range table.rows {
		key := row[manufacturerColumn]
		if key == "" {
			continue
		}
		if line, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate index entry %q on lines %d and %d of %s", key, line, i+2, path)
		}
		seen[key] = i + 2

		entry := models.IndexEntry{
			ManufacturerKey: key,
			RetailerIDs:     make(map[string]string),
		}
		for retailer, column := range columns {
			if id := row[column]; id != "" {
				entry.RetailerIDs[retailer] = id
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

type csvTable struct {
	headers []string
	rows    []map[string]string
}

func (t csvTable) require(columns ...string) error {
	present := make(map[string]bool, len(t.headers))
	for _, h := range t.headers {
		present[h] = true
	}

	var missing []string
	for _, c := range columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func readTable(path string) (csvTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return csvTable{}, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return csvTable{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	b = bytes.TrimPrefix(b, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return csvTable{}, fmt.Errorf("empty file %s", path)
	}
	if err != nil {
		return csvTable{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	table := csvTable{headers: headers}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return csvTable{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		table.rows = append(table.rows, row)
	}

	return table, nil
}
