package repository

import (
	"context"
	"strings"

	"patrimonio-api/internal/model"
	"patrimonio-api/internal/rowproxy"
)

// SheetUserRepository implements UserRepository on a record proxy.
// Emails are stored trimmed and lower-cased so lookups are exact matches.
type SheetUserRepository struct {
	proxy *rowproxy.Proxy
}

// NewSheetUserRepository creates a user repository over the users sheet.
func NewSheetUserRepository(wb rowproxy.Workbook, sheet string, locker rowproxy.Locker) *SheetUserRepository {
	return &SheetUserRepository{
		proxy: rowproxy.New(wb, rowproxy.Config{
			Name:      sheet,
			Header:    model.UserHeader,
			KeyColumn: model.UserColID,
		}, locker),
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create appends a user unless the email is taken.
func (r *SheetUserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = NormalizeEmail(user.Email)
	return r.proxy.AppendUnique(ctx, model.UserColEmail, user.Values())
}

// GetByEmail finds a user by email.
func (r *SheetUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	h, err := r.proxy.FindByKey(ctx, model.UserColEmail, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return model.UserFromRow(h.Row, h.Values), nil
}

// GetByID finds a user by id.
func (r *SheetUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	h, err := r.proxy.FindByKey(ctx, model.UserColID, id)
	if err != nil {
		return nil, err
	}
	return model.UserFromRow(h.Row, h.Values), nil
}

// FindOrCreate returns the stored user with user.Email, appending user when
// there is none.
func (r *SheetUserRepository) FindOrCreate(ctx context.Context, user *model.User) (*model.User, bool, error) {
	user.Email = NormalizeEmail(user.Email)
	h, created, err := r.proxy.FindOrCreate(ctx, model.UserColEmail, user.Values())
	if err != nil {
		return nil, false, err
	}
	return model.UserFromRow(h.Row, h.Values), created, nil
}

// Count returns the number of stored users.
func (r *SheetUserRepository) Count(ctx context.Context) (int, error) {
	rows, err := r.proxy.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Ensure SheetUserRepository implements UserRepository
var _ UserRepository = (*SheetUserRepository)(nil)
