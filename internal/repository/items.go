package repository

import (
	"context"
	"errors"

	"patrimonio-api/internal/model"
	"patrimonio-api/internal/rowproxy"
)

// SheetItemRepository implements ItemRepository on a record proxy.
type SheetItemRepository struct {
	proxy *rowproxy.Proxy
}

// NewSheetItemRepository creates an item repository over the items sheet.
func NewSheetItemRepository(wb rowproxy.Workbook, sheet string, locker rowproxy.Locker) *SheetItemRepository {
	return &SheetItemRepository{
		proxy: rowproxy.New(wb, rowproxy.Config{
			Name:      sheet,
			Header:    model.ItemHeader,
			KeyColumn: model.ItemColID,
		}, locker),
	}
}

// Create appends an item.
func (r *SheetItemRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	return r.proxy.AppendUnique(ctx, model.ItemColID, item.Values())
}

// Exists reports whether an item with id is stored.
func (r *SheetItemRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.proxy.FindByKey(ctx, model.ItemColID, id)
	if errors.Is(err, rowproxy.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns every item.
func (r *SheetItemRepository) List(ctx context.Context) ([]*model.InventoryItem, error) {
	rows, err := r.proxy.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*model.InventoryItem, 0, len(rows))
	for _, h := range rows {
		items = append(items, model.ItemFromRow(h.Row, h.Values))
	}
	return items, nil
}

// Get returns the item with id.
func (r *SheetItemRepository) Get(ctx context.Context, id string) (*model.InventoryItem, error) {
	h, err := r.proxy.FindByKey(ctx, model.ItemColID, id)
	if err != nil {
		return nil, err
	}
	return model.ItemFromRow(h.Row, h.Values), nil
}

// Update applies patch and returns the item as written.
func (r *SheetItemRepository) Update(ctx context.Context, id string, rowHint int, patch model.ItemPatch) (*model.InventoryItem, error) {
	h, err := r.locate(ctx, id, rowHint)
	if err != nil {
		return nil, err
	}
	fields := patch.Columns()
	if err := r.proxy.UpdateFields(ctx, h, fields); err != nil {
		return nil, err
	}

	values := append([]string(nil), h.Values...)
	for len(values) < model.ItemColumns {
		values = append(values, "")
	}
	for col, v := range fields {
		values[col-1] = v
	}
	return model.ItemFromRow(h.Row, values), nil
}

// Delete removes the item with id.
func (r *SheetItemRepository) Delete(ctx context.Context, id string, rowHint int) error {
	h, err := r.locate(ctx, id, rowHint)
	if err != nil {
		return err
	}
	return r.proxy.Delete(ctx, h)
}

// Count returns the number of stored items.
func (r *SheetItemRepository) Count(ctx context.Context) (int, error) {
	rows, err := r.proxy.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// locate returns a handle for id, reading the hinted row first and falling
// back to a key lookup when the hint points elsewhere.
func (r *SheetItemRepository) locate(ctx context.Context, id string, rowHint int) (*rowproxy.RowHandle, error) {
	if rowHint >= 2 {
		h, err := r.proxy.At(ctx, rowHint)
		if err == nil && h.Key == id {
			return h, nil
		}
		if err != nil && !errors.Is(err, rowproxy.ErrNotFound) {
			return nil, err
		}
	}
	return r.proxy.FindByKey(ctx, model.ItemColID, id)
}

// Ensure SheetItemRepository implements ItemRepository
var _ ItemRepository = (*SheetItemRepository)(nil)
