package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"monitor-pricewatch/config"
	"monitor-pricewatch/db"
	"monitor-pricewatch/models"
	"monitor-pricewatch/notify"
	"monitor-pricewatch/sheets"
)

// Sinks are the optional destinations a finished report is published to.
// A nil field means the sink is disabled.
type Sinks struct {
	History        *db.DB
	Sheets         *sheets.Writer
	Telegram       *notify.Notifier
	SpreadsheetURL string
	TopOffenders   int
}

// OpenSinks connects every sink enabled in the configuration.
// A sink that cannot be opened is logged and left disabled.
func OpenSinks(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) *Sinks {
	sinks := &Sinks{
		SpreadsheetURL: cfg.Sheets.SpreadsheetURL,
		TopOffenders:   cfg.Report.TopOffenders,
	}

	if cfg.Database.URL != "" {
		database, err := db.NewDB(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			log.Warnf("Warning: Failed to open run history database: %v", err)
		} else {
			log.Infof("Run history database initialized (%s)", cfg.Database.Driver)
			sinks.History = database
		}
	}

	if cfg.Sheets.SpreadsheetURL != "" {
		spreadsheetID := sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL)
		if spreadsheetID == "" {
			log.Warnf("Warning: Could not extract spreadsheet ID from URL: %s", cfg.Sheets.SpreadsheetURL)
		} else if writer, err := sheets.NewWriter(ctx, spreadsheetID, cfg.Sheets.CredentialsPath, log); err != nil {
			log.Warnf("Warning: Failed to initialize Google Sheets writer: %v", err)
		} else {
			log.Infof("Google Sheets writer initialized for spreadsheet: %s", spreadsheetID)
			sinks.Sheets = writer
		}
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := notify.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Warnf("Warning: Failed to initialize Telegram notifier: %v", err)
		} else {
			sinks.Telegram = notifier
		}
	}

	return sinks
}

// Close releases the database connection
func (s *Sinks) Close() error {
	if s == nil || s.History == nil {
		return nil
	}
	return s.History.Close()
}

// Publish stores and announces a report. Failures are logged and never returned.
func (s *Sinks) Publish(ctx context.Context, report *models.Report, log logrus.FieldLogger) {
	if s == nil {
		return
	}
	log = log.WithField("date", report.Date)

	if s.History != nil {
		if err := recordRun(ctx, s.History, report); err != nil {
			log.Warnf("Warning: Failed to record run history: %v", err)
		}
	}

	var sheetURL string
	if s.Sheets != nil {
		_, sheetID, err := s.Sheets.PublishReport(ctx, report)
		if err != nil {
			log.Warnf("Warning: Failed to write to Google Sheets: %v", err)
		} else {
			sheetURL = sheets.SheetURL(s.SpreadsheetURL, sheetID)
		}
	}

	if s.Telegram != nil {
		if err := s.Telegram.NotifyReport(report, s.TopOffenders, sheetURL); err != nil {
			log.Warnf("Warning: Failed to send Telegram summary: %v", err)
		}
	}
}

// PublishFailure records a run that stopped before producing a report
func (s *Sinks) PublishFailure(ctx context.Context, date string, runErr error, log logrus.FieldLogger) {
	if s == nil {
		return
	}
	log = log.WithField("date", date)

	if s.History != nil {
		run, err := s.History.CreateRun(ctx, date)
		if err == nil {
			err = s.History.FailRun(ctx, run.ID, runErr)
		}
		if err != nil {
			log.Warnf("Warning: Failed to record failed run: %v", err)
		}
	}

	if s.Telegram != nil {
		if err := s.Telegram.NotifyFailure(date, runErr); err != nil {
			log.Warnf("Warning: Failed to send Telegram failure notice: %v", err)
		}
	}
}

func recordRun(ctx context.Context, database *db.DB, report *models.Report) error {
	run, err := database.CreateRun(ctx, report.Date)
	if err != nil {
		return err
	}

	if err := database.SaveComparisons(ctx, run.ID, report.Products); err != nil {
		if failErr := database.FailRun(ctx, run.ID, err); failErr != nil {
			return fmt.Errorf("%w (and failed to mark run failed: %v)", err, failErr)
		}
		return err
	}

	return database.CompleteRun(ctx, run.ID, report.Summary)
}
