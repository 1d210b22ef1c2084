package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"patrimonio-api/internal/rowproxy"
)

// GoogleWorkbook reads and writes tabs of one Google spreadsheet through a
// service account. Every lookup is a remote read of the whole column.
type GoogleWorkbook struct {
	svc           *sheets.Service
	spreadsheetID string
	log           logrus.FieldLogger
}

// NewGoogleWorkbook authenticates with a service-account credentials file.
func NewGoogleWorkbook(ctx context.Context, credentialsFile, spreadsheetID string, logger logrus.FieldLogger) (*GoogleWorkbook, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	logger.WithField("spreadsheet_id", spreadsheetID).Info("Google Sheets workbook initialized")
	return &GoogleWorkbook{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		log:           logger.WithField("component", "google-workbook"),
	}, nil
}

// Sheet returns the named tab, adding it and its header when missing.
func (w *GoogleWorkbook) Sheet(ctx context.Context, name string, header []string) (rowproxy.Sheet, error) {
	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	sheetID := int64(-1)
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			sheetID = sh.Properties.SheetId
			break
		}
	}

	if sheetID == -1 {
		resp, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		w.log.WithField("sheet", name).Info("Added sheet")
	}

	s := &googleSheet{wb: w, name: name, sheetID: sheetID}

	first, err := s.get(ctx, s.rangeOf("1:1"))
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		if err := s.update(ctx, s.rangeOf("A1"), header); err != nil {
			return nil, fmt.Errorf("failed to write header of %s: %w", name, err)
		}
	}
	return s, nil
}

// Ping fetches the spreadsheet id.
func (w *GoogleWorkbook) Ping(ctx context.Context) error {
	_, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}

// Close is a no-op; the HTTP client has nothing to release.
func (w *GoogleWorkbook) Close() error {
	return nil
}

type googleSheet struct {
	wb      *GoogleWorkbook
	name    string
	sheetID int64

	// Values.Append locates the table by scanning; keep our own appends ordered
	mu sync.Mutex
}

func (s *googleSheet) rangeOf(a1 string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.name, "'", "''"), a1)
}

func (s *googleSheet) get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := s.wb.svc.Spreadsheets.Values.Get(s.wb.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (s *googleSheet) update(ctx context.Context, rng string, values []string) error {
	_, err := s.wb.svc.Spreadsheets.Values.Update(s.wb.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{toInterfaces(values)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *googleSheet) Find(ctx context.Context, column int, value string) (int, error) {
	name, err := excelize.ColumnNumberToName(column)
	if err != nil {
		return 0, err
	}
	rows, err := s.get(ctx, s.rangeOf(name+":"+name))
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && rows[i][0] == value {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *googleSheet) RowValues(ctx context.Context, row int) ([]string, error) {
	if row < 1 {
		return []string{}, nil
	}
	rows, err := s.get(ctx, s.rangeOf(fmt.Sprintf("%d:%d", row, row)))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return rows[0], nil
}

func (s *googleSheet) AllRows(ctx context.Context) ([][]string, error) {
	rows, err := s.get(ctx, s.rangeOf("A:ZZ"))
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return [][]string{}, nil
	}
	return rows[1:], nil
}

func (s *googleSheet) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.wb.svc.Spreadsheets.Values.Append(s.wb.spreadsheetID, s.rangeOf("A1"), &sheets.ValueRange{
		Values: [][]interface{}{toInterfaces(values)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.name, err)
	}
	return nil
}

func (s *googleSheet) UpdateCell(ctx context.Context, row, column int, value string) error {
	cell, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return err
	}
	if err := s.update(ctx, s.rangeOf(cell), []string{value}); err != nil {
		return fmt.Errorf("failed to update %s: %w", s.rangeOf(cell), err)
	}
	return nil
}

func (s *googleSheet) DeleteRow(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("%w: %d", errRowOutOfRange, row)
	}
	_, err := s.wb.svc.Spreadsheets.BatchUpdate(s.wb.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         s.sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete row %d of %s: %w", row, s.name, err)
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Ensure GoogleWorkbook implements rowproxy.Workbook
var _ rowproxy.Workbook = (*GoogleWorkbook)(nil)
