package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"monitor-pricewatch/models"
)

// Writer publishes comparison reports to a Google Sheets spreadsheet
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	log           logrus.FieldLogger
}

// NewWriter creates a Google Sheets writer authenticated with a service account.
// Credentials are read from credentialsPath, or from GOOGLE_SHEETS_CREDENTIALS when the path is empty.
func NewWriter(ctx context.Context, spreadsheetID, credentialsPath string, log logrus.FieldLogger) (*Writer, error) {
	credsJSON, err := readCredentials(credentialsPath, log)
	if err != nil {
		return nil, err
	}
	return newWriter(ctx, spreadsheetID, log, option.WithCredentialsJSON(credsJSON))
}

func newWriter(ctx context.Context, spreadsheetID string, log logrus.FieldLogger, opts ...option.ClientOption) (*Writer, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func readCredentials(credentialsPath string, log logrus.FieldLogger) ([]byte, error) {
	var credsJSON []byte

	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		log.Debugf("Reading credentials from GOOGLE_SHEETS_CREDENTIALS environment variable (%d bytes)", len(credsEnv))
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	return credsJSON, nil
}

// SheetName returns the tab name used for a report date
func SheetName(date string) string {
	return sanitizeSheetName("Comparison_" + date)
}

// PublishReport creates a new tab at the beginning of the spreadsheet and writes the report to it.
// Returns the tab name and its sheet ID (gid).
func (w *Writer) PublishReport(ctx context.Context, report *models.Report) (string, int64, error) {
	sheetName := SheetName(report.Date)

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
						// index 0 is the zero value and would otherwise be dropped from the request
						ForceSendFields: []string{"Index"},
					},
				},
			},
		},
	}

	batchUpdateResp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(batchUpdateResp.Replies) > 0 && batchUpdateResp.Replies[0].AddSheet != nil {
		sheetID = batchUpdateResp.Replies[0].AddSheet.Properties.SheetId
	}
	w.log.WithField("sheet", sheetName).Infof("Created sheet with ID %d", sheetID)

	valueRange := &sheets.ValueRange{
		Values: ReportValues(report),
	}
	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, sheetName+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.log.WithField("sheet", sheetName).Infof("Successfully wrote %d products to Google Sheets", len(report.Products))
	return sheetName, sheetID, nil
}

// ReportValues lays out a report as sheet rows: the summary block, a blank row, then one row per product
func ReportValues(report *models.Report) [][]interface{} {
	s := report.Summary
	values := [][]interface{}{
		{"Date", report.Date},
		{"Total products", s.TotalProducts},
		{"Offending products", s.TotalOffendingProducts},
		{"Deviated products", s.TotalDeviatedProducts},
		{"Undetermined products", s.TotalUndetermined},
		{"Compliance rate", s.ComplianceRate.StringFixed(2)},
	}

	names := make([]string, 0, len(report.Retailers))
	for name := range report.Retailers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rs := report.Retailers[name]
		values = append(values, []interface{}{
			name + " compliance rate", rs.ComplianceRate.StringFixed(2),
			"Average deviation", rs.AverageDeviation.StringFixed(2),
		})
	}

	values = append(values, []interface{}{})
	values = append(values, []interface{}{
		"Product", "Retailer", "Retailer SKU", "Manufacturer price", "Retailer price", "Price difference", "Deviation", "Status",
	})
	for _, row := range report.Products {
		values = append(values, []interface{}{
			row.Product,
			row.Retailer,
			row.RetailerSKU,
			row.ManufacturerPrice.StringFixed(2),
			amount(row.RetailerPrice),
			amount(row.PriceDifference),
			amount(row.Deviation),
			string(row.Status),
		})
	}

	return values
}

func amount(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(2)
}

// SheetURL builds a link that opens a specific tab of the spreadsheet
func SheetURL(spreadsheetURL string, sheetID int64) string {
	spreadsheetID := ExtractSpreadsheetID(spreadsheetURL)
	if spreadsheetID == "" {
		return spreadsheetURL
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ]
	invalidChars := []string{"/", "\\", "?", "*", "[", "]"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
