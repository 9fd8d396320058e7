package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"resit/internal/log"
	"resit/internal/services"
)

// SheetsConfig selects the target spreadsheet and credentials. Inline JSON
// wins over the file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
type SheetsConfig struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// SheetsExporter writes reports into a Google spreadsheet, one tab per range.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// NewSheetsExporter creates an exporter authenticated with a service account.
func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...goption.ClientOption) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	logger = logger.WithComponent(log.ComponentReport)

	if len(opts) == 0 {
		credentialsJSON, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return &SheetsExporter{svc: svc, spreadsheetID: cfg.SpreadsheetID, logger: logger}, nil
}

func loadCredentials(cfg SheetsConfig) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// TabName names the sheet tab holding rep.
func TabName(rep services.Report) string {
	return fmt.Sprintf("Receipts %s..%s", fileBound(rep.From), fileBound(rep.To))
}

// Export replaces the contents of the tab for rep's range with the daily rows
// followed by the summary, creating the tab if needed. It returns the tab
// name.
func (e *SheetsExporter) Export(ctx context.Context, rep services.Report) (string, error) {
	tab := TabName(rep)
	if err := e.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("'%s'!A1", tab)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, fmt.Sprintf("'%s'", tab), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear tab %q: %w", tab, err)
	}

	values := append([][]any{DailyHeader}, DailyRows(rep)...)
	values = append(values, []any{})
	values = append(values, SummaryRows(rep)...)

	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write tab %q: %w", tab, err)
	}

	e.logger.InfoContext(ctx, "Report exported to Google Sheets",
		log.FieldOperation, log.OpExport,
		"tab", tab,
		log.FieldDays, len(rep.Days))
	return tab, nil
}

func (e *SheetsExporter) ensureTab(ctx context.Context, tab string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	return nil
}
