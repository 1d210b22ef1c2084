// Package rowproxy maps records onto rows of an external tabular store that
// only offers find, read, append, update-cell and delete-row primitives.
//
// Rows are 1-based and row 1 holds the header. A RowHandle is a snapshot of
// a row position; any delete above it shifts it. Mutating calls re-read the
// addressed row and refuse to act when its key no longer matches.
package rowproxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sheet is the primitive row-store boundary. Rows and columns are 1-based.
type Sheet interface {
	// Find returns the first data row whose cell in column equals value,
	// or 0 when there is none.
	Find(ctx context.Context, column int, value string) (int, error)

	// RowValues returns the cells of a row. A row past the end yields an
	// empty slice.
	RowValues(ctx context.Context, row int) ([]string, error)

	// AllRows returns every data row, header excluded, in sheet order.
	AllRows(ctx context.Context) ([][]string, error)

	AppendRow(ctx context.Context, values []string) error
	UpdateCell(ctx context.Context, row, column int, value string) error
	DeleteRow(ctx context.Context, row int) error
}

// Workbook opens sheets on a store.
type Workbook interface {
	// Sheet opens the named sheet, creating it with header when missing.
	Sheet(ctx context.Context, name string, header []string) (Sheet, error)
	Ping(ctx context.Context) error
	Close() error
}

// Locker serializes writers on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RowHandle addresses one data row as it was when read.
type RowHandle struct {
	Row    int
	Key    string
	Values []string
}

// Value returns the cell at column, or "" when the row is shorter.
func (h *RowHandle) Value(column int) string {
	if column >= 1 && column <= len(h.Values) {
		return h.Values[column-1]
	}
	return ""
}

// Config describes the sheet a Proxy manages.
type Config struct {
	Name      string
	Header    []string
	KeyColumn int
}

// Proxy exposes record operations over one sheet.
type Proxy struct {
	wb     Workbook
	cfg    Config
	locker Locker

	mu    sync.Mutex
	sheet Sheet

	// used when no Locker is supplied
	writeMu sync.Mutex
}

// New creates a proxy. The sheet is opened on first use, so a store that is
// down at startup does not prevent construction. A nil locker serializes
// writers inside this process only.
func New(wb Workbook, cfg Config, locker Locker) *Proxy {
	if cfg.KeyColumn == 0 {
		cfg.KeyColumn = 1
	}
	return &Proxy{wb: wb, cfg: cfg, locker: locker}
}

// Name returns the sheet name.
func (p *Proxy) Name() string {
	return p.cfg.Name
}

// Columns returns the number of columns in a row.
func (p *Proxy) Columns() int {
	return len(p.cfg.Header)
}

func (p *Proxy) open(ctx context.Context) (Sheet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sheet != nil {
		return p.sheet, nil
	}
	sheet, err := p.wb.Sheet(ctx, p.cfg.Name, p.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, p.cfg.Name, err)
	}
	p.sheet = sheet
	return sheet, nil
}

func (p *Proxy) lock(ctx context.Context) (func(), error) {
	if p.locker == nil {
		p.writeMu.Lock()
		return p.writeMu.Unlock, nil
	}
	unlock, err := p.locker.Lock(ctx, "rowproxy:"+p.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("rowproxy: lock %s: %w", p.cfg.Name, err)
	}
	return unlock, nil
}

func (p *Proxy) upstream(op string, err error) error {
	return &UpstreamError{Sheet: p.cfg.Name, Op: op, Err: err}
}

func (p *Proxy) checkColumn(column int) error {
	if column < 1 || column > len(p.cfg.Header) {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, column)
	}
	return nil
}

func (p *Proxy) handle(row int, values []string) *RowHandle {
	h := &RowHandle{Row: row, Values: values}
	h.Key = h.Value(p.cfg.KeyColumn)
	return h
}

// FindByKey returns the first row whose column equals key.
// The scan is linear on spreadsheet backends.
func (p *Proxy) FindByKey(ctx context.Context, column int, key string) (*RowHandle, error) {
	if err := p.checkColumn(column); err != nil {
		return nil, err
	}
	sheet, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	return p.find(ctx, sheet, column, key)
}

func (p *Proxy) find(ctx context.Context, sheet Sheet, column int, key string) (*RowHandle, error) {
	row, err := sheet.Find(ctx, column, key)
	if err != nil {
		return nil, p.upstream("find", err)
	}
	if row == 0 {
		return nil, ErrNotFound
	}
	values, err := sheet.RowValues(ctx, row)
	if err != nil {
		return nil, p.upstream("read", err)
	}
	return p.handle(row, values), nil
}

// At reads the row at a position.
func (p *Proxy) At(ctx context.Context, row int) (*RowHandle, error) {
	if row < 2 {
		return nil, ErrInvalidHandle
	}
	sheet, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	values, err := sheet.RowValues(ctx, row)
	if err != nil {
		return nil, p.upstream("read", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return p.handle(row, values), nil
}

// ListAll returns every data row with its current handle.
func (p *Proxy) ListAll(ctx context.Context) ([]*RowHandle, error) {
	sheet, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := sheet.AllRows(ctx)
	if err != nil {
		return nil, p.upstream("list", err)
	}
	out := make([]*RowHandle, 0, len(rows))
	for i, values := range rows {
		out = append(out, p.handle(i+2, values))
	}
	return out, nil
}

// Append adds a row at the end. No handle is returned; the caller finds it
// again by key when needed.
func (p *Proxy) Append(ctx context.Context, values []string) error {
	if len(values) != len(p.cfg.Header) {
		return fmt.Errorf("%w: got %d, want %d", ErrArity, len(values), len(p.cfg.Header))
	}
	sheet, err := p.open(ctx)
	if err != nil {
		return err
	}
	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := sheet.AppendRow(ctx, values); err != nil {
		return p.upstream("append", err)
	}
	return nil
}

// AppendUnique appends values unless a row already holds the same value in
// column. The check and the append run under the sheet's writer lock, so
// writers going through this proxy (or sharing its distributed lock) cannot
// both succeed. Writers that bypass the lock are not covered.
func (p *Proxy) AppendUnique(ctx context.Context, column int, values []string) error {
	if err := p.checkColumn(column); err != nil {
		return err
	}
	if len(values) != len(p.cfg.Header) {
		return fmt.Errorf("%w: got %d, want %d", ErrArity, len(values), len(p.cfg.Header))
	}
	sheet, err := p.open(ctx)
	if err != nil {
		return err
	}
	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	row, err := sheet.Find(ctx, column, values[column-1])
	if err != nil {
		return p.upstream("find", err)
	}
	if row != 0 {
		return ErrDuplicateKey
	}
	if err := sheet.AppendRow(ctx, values); err != nil {
		return p.upstream("append", err)
	}
	return nil
}

// FindOrCreate returns the row holding values[column-1] in column, appending
// values first when no such row exists. created reports whether it appended.
func (p *Proxy) FindOrCreate(ctx context.Context, column int, values []string) (h *RowHandle, created bool, err error) {
	if err := p.checkColumn(column); err != nil {
		return nil, false, err
	}
	if len(values) != len(p.cfg.Header) {
		return nil, false, fmt.Errorf("%w: got %d, want %d", ErrArity, len(values), len(p.cfg.Header))
	}
	sheet, err := p.open(ctx)
	if err != nil {
		return nil, false, err
	}
	key := values[column-1]

	h, err = p.find(ctx, sheet, column, key)
	if err == nil {
		return h, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	unlock, err := p.lock(ctx)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	// another writer may have created it while we waited
	h, err = p.find(ctx, sheet, column, key)
	if err == nil {
		return h, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if err := sheet.AppendRow(ctx, values); err != nil {
		return nil, false, p.upstream("append", err)
	}
	h, err = p.find(ctx, sheet, column, key)
	if err != nil {
		return nil, true, err
	}
	return h, true, nil
}

// UpdateFields writes cells of the row at h, in ascending column order.
// The write is not atomic: if a cell fails after others were written the
// returned error is a *PartialUpdateError. An empty fields map still checks
// that h is current.
func (p *Proxy) UpdateFields(ctx context.Context, h *RowHandle, fields map[int]string) error {
	columns := make([]int, 0, len(fields))
	for col := range fields {
		if err := p.checkColumn(col); err != nil {
			return err
		}
		columns = append(columns, col)
	}
	sort.Ints(columns)

	sheet, err := p.open(ctx)
	if err != nil {
		return err
	}
	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.verify(ctx, sheet, h); err != nil {
		return err
	}

	written := make([]int, 0, len(columns))
	for _, col := range columns {
		if err := sheet.UpdateCell(ctx, h.Row, col, fields[col]); err != nil {
			if len(written) == 0 {
				return p.upstream("update", err)
			}
			return &PartialUpdateError{
				Sheet:   p.cfg.Name,
				Row:     h.Row,
				Written: written,
				Failed:  col,
				Err:     err,
			}
		}
		written = append(written, col)
	}
	return nil
}

// Delete removes the row at h. Handles for rows below it are invalid
// afterwards.
func (p *Proxy) Delete(ctx context.Context, h *RowHandle) error {
	sheet, err := p.open(ctx)
	if err != nil {
		return err
	}
	unlock, err := p.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.verify(ctx, sheet, h); err != nil {
		return err
	}
	if err := sheet.DeleteRow(ctx, h.Row); err != nil {
		return p.upstream("delete", err)
	}
	return nil
}

// Resolve returns a fresh handle for the record h was read from.
func (p *Proxy) Resolve(ctx context.Context, h *RowHandle) (*RowHandle, error) {
	if h == nil {
		return nil, ErrInvalidHandle
	}
	return p.FindByKey(ctx, p.cfg.KeyColumn, h.Key)
}

func (p *Proxy) verify(ctx context.Context, sheet Sheet, h *RowHandle) error {
	if h == nil || h.Row < 2 {
		return ErrInvalidHandle
	}
	values, err := sheet.RowValues(ctx, h.Row)
	if err != nil {
		return p.upstream("read", err)
	}
	current := p.handle(h.Row, values)
	if len(values) == 0 || current.Key != h.Key {
		return fmt.Errorf("%w: row %d of %s", ErrStaleHandle, h.Row, p.cfg.Name)
	}
	return nil
}
