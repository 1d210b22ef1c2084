package model

// Item sheet columns (1-based, header in row 1).
const (
	ItemColID = iota + 1
	ItemColName
	ItemColCategory
	ItemColLocation
	ItemColPhotoURL
	ItemColCreatedAt

	ItemColumns = ItemColCreatedAt
)

// ItemHeader is the header row written to a fresh items sheet.
var ItemHeader = []string{"id", "nome", "categoria", "local", "foto_url", "data"}

// TimestampLayout is the created_at format stored in the sheet.
const TimestampLayout = "2006-01-02 15:04:05"

// InventoryItem is one registered asset.
// RowNumber is a positional handle valid only until the next structural
// change of the sheet; it is not part of the item's identity.
type InventoryItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Location  string `json:"location"`
	PhotoURL  string `json:"photo_url"`
	CreatedAt string `json:"created_at"`
	RowNumber int    `json:"row_number"`
}

// Values returns the item as a sheet row.
func (i *InventoryItem) Values() []string {
	return []string{i.ID, i.Name, i.Category, i.Location, i.PhotoURL, i.CreatedAt}
}

// ItemFromRow builds an item from a sheet row. Missing trailing cells are
// treated as empty.
func ItemFromRow(row int, values []string) *InventoryItem {
	return &InventoryItem{
		ID:        cell(values, ItemColID),
		Name:      cell(values, ItemColName),
		Category:  cell(values, ItemColCategory),
		Location:  cell(values, ItemColLocation),
		PhotoURL:  cell(values, ItemColPhotoURL),
		CreatedAt: cell(values, ItemColCreatedAt),
		RowNumber: row,
	}
}

// ItemPatch holds the editable fields of an item. Nil fields are left alone.
type ItemPatch struct {
	Name     *string
	Category *string
	Location *string
	PhotoURL *string
}

// Columns maps the set fields to their sheet columns.
func (p ItemPatch) Columns() map[int]string {
	out := make(map[int]string, 4)
	if p.Name != nil {
		out[ItemColName] = *p.Name
	}
	if p.Category != nil {
		out[ItemColCategory] = *p.Category
	}
	if p.Location != nil {
		out[ItemColLocation] = *p.Location
	}
	if p.PhotoURL != nil {
		out[ItemColPhotoURL] = *p.PhotoURL
	}
	return out
}

func cell(values []string, col int) string {
	if col-1 < len(values) {
		return values[col-1]
	}
	return ""
}
