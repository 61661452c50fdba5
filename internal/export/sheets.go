package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Sink is where rendered report rows end up.
type Sink interface {
	Append(ctx context.Context, rows []Row) error
}

// SheetsSink appends report rows to a Google Sheets spreadsheet.
type SheetsSink struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ Sink = (*SheetsSink)(nil)

// NewSheetsSink creates a sink for the given spreadsheet and sheet.
func NewSheetsSink(ctx context.Context, spreadsheetID, sheetName string) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Report"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// Append writes the rows to the bottom of the report sheet. When the sheet is
// still empty the header row goes first.
func (s *SheetsSink) Append(ctx context.Context, rows []Row) error {
	if s.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get sheet dimensions for %s: %w", s.sheetName, err)
	}

	values := make([][]any, 0, len(rows)+1)
	if len(resp.Values) == 0 {
		header := Header()
		headerRow := make([]any, len(header))
		for i, h := range header {
			headerRow[i] = h
		}
		values = append(values, headerRow)
	}
	for _, r := range rows {
		values = append(values, []any{r.Date, r.Category, r.Note, r.Amount})
	}

	vr := &gsheet.ValueRange{Values: values}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, fmt.Sprintf("%s!A:D", s.sheetName), vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows to sheet %s: %w", s.sheetName, err)
	}

	slog.InfoContext(ctx, "Report rows appended to sheet",
		"sheet", s.sheetName,
		"rows", len(rows))
	return nil
}
