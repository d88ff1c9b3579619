// Package sheets exports the user directory to a Google Sheet.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ocrbot/internal/logger"
)

// userColumns is the header row of the export.
var userColumns = []interface{}{"UserID", "First", "Last", "Username", "Exported At"}

// lastColumn is the column letter of the final header.
const lastColumn = "E"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	worksheet     string
	now           func() time.Time
	log           zerolog.Logger
}

// NewSheetsService creates a service writing to worksheet of the sheet at sheetURL.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func NewSheetsService(ctx context.Context, sheetURL, worksheet string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}
	return newService(sheetsService, spreadsheetID, worksheet), nil
}

func newService(svc *sheets.Service, spreadsheetID, worksheet string) *Service {
	if worksheet == "" {
		worksheet = "Users"
	}
	s := &Service{
		sheetsService: svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		now:           time.Now,
		log:           logger.WithComponent("sheets"),
	}
	s.log.Debug().Str("spreadsheet_id", spreadsheetID).Str("sheet", worksheet).Msg("Sheets service ready")
	return s
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// ExportUsers replaces the worksheet contents with a header row and one row
// per directory line. It returns the number of user rows written.
func (s *Service) ExportUsers(ctx context.Context, lines []string) (int, error) {
	const op = "ExportUsers"

	if err := s.ensureSheet(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	exportedAt := s.now().UTC().Format(time.RFC3339)
	values := make([][]interface{}, 0, len(lines)+1)
	values = append(values, userColumns)
	for _, line := range lines {
		values = append(values, append(parseDirectoryLine(line), exportedAt))
	}

	fullRange := fmt.Sprintf("%s!A:%s", s.worksheet, lastColumn)
	if _, err := s.sheetsService.Spreadsheets.Values.Clear(
		s.spreadsheetID, fullRange, &sheets.ClearValuesRequest{},
	).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("%s: failed to clear sheet: %w", op, err)
	}

	_, err := s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A1", s.worksheet),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to write rows: %w", op, err)
	}

	s.log.Info().
		Str("sheet", s.worksheet).
		Int("rows", len(lines)).
		Msg("Exported user directory")
	return len(lines), nil
}

// ensureSheet creates the worksheet when the spreadsheet lacks it.
func (s *Service) ensureSheet(ctx context.Context) error {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			return nil
		}
	}

	s.log.Info().Str("sheet", s.worksheet).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.worksheet}}},
		},
	}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}
	return nil
}

// parseDirectoryLine splits "UserID: 1 | First: a | Last: b | Username: @c"
// into its four values. Lines in another shape land whole in the first column.
func parseDirectoryLine(line string) []interface{} {
	parts := strings.Split(line, " | ")
	if len(parts) != 4 {
		return []interface{}{line, "", "", ""}
	}
	row := make([]interface{}, 0, 4)
	for _, part := range parts {
		_, value, _ := strings.Cut(part, ":")
		row = append(row, strings.TrimSpace(value))
	}
	return row
}
