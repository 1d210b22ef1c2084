package rowproxy

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when no row matches a key or address.
	ErrNotFound = errors.New("rowproxy: row not found")

	// ErrDuplicateKey is returned by AppendUnique when the key already exists.
	ErrDuplicateKey = errors.New("rowproxy: duplicate key")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("rowproxy: store unavailable")

	// ErrArity is returned when a row does not have one value per column.
	ErrArity = errors.New("rowproxy: wrong number of values")

	// ErrInvalidColumn is returned for a column outside the sheet header.
	ErrInvalidColumn = errors.New("rowproxy: invalid column")

	// ErrInvalidHandle is returned for a handle that cannot address a data row.
	ErrInvalidHandle = errors.New("rowproxy: invalid row handle")

	// ErrStaleHandle is returned when the row at a handle's position no longer
	// holds the record the handle was read from.
	ErrStaleHandle = errors.New("rowproxy: stale row handle")
)

// UpstreamError wraps a failed call to the row store.
type UpstreamError struct {
	Sheet string
	Op    string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("rowproxy: %s %s: %v", e.Sheet, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PartialUpdateError reports a multi-cell update that stopped midway.
// Columns in Written hold the new values, the rest still hold the old ones.
type PartialUpdateError struct {
	Sheet   string
	Row     int
	Written []int
	Failed  int
	Err     error
}

func (e *PartialUpdateError) Error() string {
	written := append([]int(nil), e.Written...)
	sort.Ints(written)
	return fmt.Sprintf("rowproxy: %s row %d partially updated (written columns %v, failed at column %d): %v",
		e.Sheet, e.Row, written, e.Failed, e.Err)
}

func (e *PartialUpdateError) Unwrap() error {
	return e.Err
}
