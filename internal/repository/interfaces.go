package repository

import (
	"context"

	"patrimonio-api/internal/model"
)

// ItemRepository defines inventory item data access methods.
type ItemRepository interface {
	// Create appends an item, failing with rowproxy.ErrDuplicateKey when the id exists.
	Create(ctx context.Context, item *model.InventoryItem) error

	// Exists reports whether an item with id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns every item with its current row number.
	List(ctx context.Context) ([]*model.InventoryItem, error)

	// Get returns the item with id.
	Get(ctx context.Context, id string) (*model.InventoryItem, error)

	// Update applies patch to the item with id. rowHint is the row number the
	// caller last saw, or 0; it is only trusted while it still holds id.
	Update(ctx context.Context, id string, rowHint int, patch model.ItemPatch) (*model.InventoryItem, error)

	// Delete removes the item with id, using rowHint like Update.
	Delete(ctx context.Context, id string, rowHint int) error

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)
}

// UserRepository defines user account data access methods.
type UserRepository interface {
	// Create appends a user, failing with rowproxy.ErrDuplicateKey when the email exists.
	Create(ctx context.Context, user *model.User) error

	// GetByEmail finds a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetByID finds a user by id.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// FindOrCreate returns the user with user.Email, creating user when absent.
	FindOrCreate(ctx context.Context, user *model.User) (*model.User, bool, error)

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)
}
