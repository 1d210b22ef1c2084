package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"patrimonio-api/internal/model"
	"patrimonio-api/internal/repository"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/pkg/uid"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// AuthService handles local and external sign-in.
type AuthService struct {
	users      repository.UserRepository
	log        logrus.FieldLogger
	bcryptCost int
}

// NewAuthService creates an auth service.
func NewAuthService(users repository.UserRepository, logger logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:      users,
		log:        logger.WithField("component", "auth"),
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterInput is a local account registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a local account. The email must not be registered yet.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = repository.NormalizeEmail(in.Email)

	if err := required(map[string]string{
		"name":     in.Name,
		"email":    in.Email,
		"password": in.Password,
	}); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if len(in.Password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("must be at least %d characters", MinPasswordLength)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uid.NewWithPrefix("user"),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Provider:     model.ProviderEmail,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login checks local credentials. Unknown emails, accounts without a
// password and wrong passwords all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = repository.NormalizeEmail(email)
	if err := required(map[string]string{"email": email, "password": password}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, rowproxy.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// LoginExternal finds or creates the account for a third-party profile in
// one step.
func (s *AuthService) LoginExternal(ctx context.Context, profile model.ExternalProfile) (*model.User, bool, error) {
	email := repository.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, false, &ValidationError{Fields: map[string]string{"email": "missing from external profile"}}
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = email
	}

	user, created, err := s.users.FindOrCreate(ctx, &model.User{
		ID:         uid.NewWithPrefix("user"),
		Name:       name,
		Email:      email,
		PictureURL: profile.PictureURL,
		Provider:   profile.Provider,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "provider": profile.Provider}).Info("External user created")
	}
	return user, created, nil
}

// CurrentUser returns the account for a session's user id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// CountUsers returns the number of stored users.
func (s *AuthService) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}
