package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenex/internal/log"
)

// SheetsConfig locates the ledger spreadsheet and its service account.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// SheetsWriter appends ledger rows to a Google Sheet.
type SheetsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// NewSheetsWriter builds the Sheets client. Extra client options replace the
// service account credentials when given.
func NewSheetsWriter(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...goption.ClientOption) (*SheetsWriter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Ledger"
	}
	if logger == nil {
		logger = log.Discard()
	}
	if len(opts) == 0 {
		creds, err := credentialsJSON(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetsWriter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(log.ComponentLedger),
	}, nil
}

func credentialsJSON(cfg SheetsConfig) ([]byte, error) {
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, errors.New("missing service account credentials")
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (w *SheetsWriter) columns(from, to string) string {
	return fmt.Sprintf("%s!%s:%s", w.sheetName, from, to)
}

// EnsureHeader writes Header into the first row when it is empty.
func (w *SheetsWriter) EnsureHeader(ctx context.Context) error {
	rng := w.columns("A1", "I1")
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	cells := make([]any, len(Header))
	for i, h := range Header {
		cells[i] = h
	}
	vr := &gsheet.ValueRange{Values: [][]any{cells}}
	if _, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.logger.InfoContext(ctx, "Wrote ledger header", "sheet", w.sheetName)
	return nil
}

// Append adds row after the last filled row of the ledger sheet.
func (w *SheetsWriter) Append(ctx context.Context, row Row) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, w.columns("A", "I"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append ledger row: %w", err)
	}

	ref := w.columns("A", "I")
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	w.logger.DebugContext(ctx, "Appended ledger row",
		"event_id", row.EventID,
		log.FieldTransactionID, row.TransactionID,
		"range", ref)
	return ref, nil
}

// Ping checks that the spreadsheet is reachable with the configured credentials.
func (w *SheetsWriter) Ping(ctx context.Context) error {
	_, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}
