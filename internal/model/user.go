package model

// Auth providers.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// User sheet columns (1-based, header in row 1).
const (
	UserColID = iota + 1
	UserColName
	UserColEmail
	UserColPasswordHash
	UserColPictureURL
	UserColProvider

	UserColumns = UserColProvider
)

// UserHeader is the header row written to a fresh users sheet.
var UserHeader = []string{"id", "nome", "email", "password_hash", "foto_perfil", "provider"}

// User is a stored account. PasswordHash is empty for external accounts.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	PictureURL   string `json:"picture_url,omitempty"`
	Provider     string `json:"provider"`
	RowNumber    int    `json:"-"`
}

// Values returns the user as a sheet row.
func (u *User) Values() []string {
	return []string{u.ID, u.Name, u.Email, u.PasswordHash, u.PictureURL, u.Provider}
}

// UserFromRow builds a user from a sheet row.
func UserFromRow(row int, values []string) *User {
	return &User{
		ID:           cell(values, UserColID),
		Name:         cell(values, UserColName),
		Email:        cell(values, UserColEmail),
		PasswordHash: cell(values, UserColPasswordHash),
		PictureURL:   cell(values, UserColPictureURL),
		Provider:     cell(values, UserColProvider),
		RowNumber:    row,
	}
}

// ExternalProfile is the identity returned by a third-party sign-in.
type ExternalProfile struct {
	Email      string
	Name       string
	PictureURL string
	Provider   string
}
