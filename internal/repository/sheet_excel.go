package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"patrimonio-api/internal/rowproxy"
)

// ExcelWorkbook keeps sheets in a local .xlsx file. With an empty path the
// workbook lives in memory only. Every mutation is saved immediately.
type ExcelWorkbook struct {
	mu     sync.Mutex
	file   *excelize.File
	path   string
	closed bool
	log    logrus.FieldLogger
}

// NewExcelWorkbook opens path, creating the file and its directory when
// missing.
func NewExcelWorkbook(path string, logger logrus.FieldLogger) (*ExcelWorkbook, error) {
	w := &ExcelWorkbook{path: path, log: logger.WithField("component", "excel-workbook")}

	if path == "" {
		w.file = excelize.NewFile()
		return w, nil
	}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
		w.file = f
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workbook directory: %w", err)
		}
		w.file = excelize.NewFile()
		if err := w.file.SaveAs(path); err != nil {
			return nil, fmt.Errorf("failed to create workbook %s: %w", path, err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat workbook %s: %w", path, err)
	}

	w.log.WithField("path", path).Info("Excel workbook initialized")
	return w, nil
}

// Sheet returns the named sheet, adding it with header when missing.
func (w *ExcelWorkbook) Sheet(ctx context.Context, name string, header []string) (rowproxy.Sheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.New("workbook closed")
	}

	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet %s: %w", name, err)
	}
	if idx == -1 {
		if _, err := w.file.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	rows, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		if err := w.file.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("failed to write header of %s: %w", name, err)
		}
		if err := w.save(); err != nil {
			return nil, err
		}
	}

	return &excelSheet{wb: w, name: name}, nil
}

// Ping reports whether the workbook can still be written.
func (w *ExcelWorkbook) Ping(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("workbook closed")
	}
	if w.path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("workbook directory unavailable: %w", err)
	}
	return nil
}

// Close releases the workbook.
func (w *ExcelWorkbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// save must be called with mu held.
func (w *ExcelWorkbook) save() error {
	if w.path == "" {
		return nil
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

type excelSheet struct {
	wb   *ExcelWorkbook
	name string
}

func (s *excelSheet) rows() ([][]string, error) {
	if s.wb.closed {
		return nil, errors.New("workbook closed")
	}
	rows, err := s.wb.file.GetRows(s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.name, err)
	}
	return rows, nil
}

func (s *excelSheet) Find(ctx context.Context, column int, value string) (int, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(rows); i++ {
		if column-1 < len(rows[i]) && rows[i][column-1] == value {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *excelSheet) RowValues(ctx context.Context, row int) ([]string, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	if row < 1 || row > len(rows) {
		return []string{}, nil
	}
	return append([]string(nil), rows[row-1]...), nil
}

func (s *excelSheet) AllRows(ctx context.Context) ([][]string, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return [][]string{}, nil
	}
	return rows[1:], nil
}

func (s *excelSheet) AppendRow(ctx context.Context, values []string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.rows()
	if err != nil {
		return err
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}
	row := append([]string(nil), values...)
	if err := s.wb.file.SetSheetRow(s.name, cell, &row); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.name, err)
	}
	return s.wb.save()
}

func (s *excelSheet) UpdateCell(ctx context.Context, row, column int, value string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	if s.wb.closed {
		return errors.New("workbook closed")
	}
	cell, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellStr(s.name, cell, value); err != nil {
		return fmt.Errorf("failed to update %s!%s: %w", s.name, cell, err)
	}
	return s.wb.save()
}

func (s *excelSheet) DeleteRow(ctx context.Context, row int) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	rows, err := s.rows()
	if err != nil {
		return err
	}
	if row < 2 || row > len(rows) {
		return fmt.Errorf("%w: %d", errRowOutOfRange, row)
	}
	if err := s.wb.file.RemoveRow(s.name, row); err != nil {
		return fmt.Errorf("failed to delete row %d of %s: %w", row, s.name, err)
	}
	return s.wb.save()
}

// Ensure ExcelWorkbook implements rowproxy.Workbook
var _ rowproxy.Workbook = (*ExcelWorkbook)(nil)
