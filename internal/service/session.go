package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/model"
	"patrimonio-api/pkg/uid"
)

const revokedKeyPrefix = "session:revoked:"

// sessionClaims is the signed cookie payload.
type sessionClaims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

// SessionService issues and validates signed session tokens. Tokens are
// stateless; logout records the token id in the cache until it expires.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	cache  cache.Cache
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewSessionService creates a session service.
func NewSessionService(secret string, ttl time.Duration, c cache.Cache, logger logrus.FieldLogger) *SessionService {
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		cache:  c,
		log:    logger.WithField("component", "session"),
		now:    time.Now,
	}
}

// TTL returns the session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session for user.
func (s *SessionService) Issue(ctx context.Context, user *model.User) (string, *model.Identity, error) {
	now := s.now()
	id := &model.Identity{
		SessionID: uid.New(),
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Provider:  user.Provider,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
		Name:     id.Name,
		Email:    id.Email,
		Provider: id.Provider,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": id.UserID, "provider": id.Provider}).Info("Session issued")
	return signed, id, nil
}

// Parse validates a token and returns its identity.
func (s *SessionService) Parse(ctx context.Context, tokenString string) (*model.Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	revoked, err := s.cache.Exists(ctx, revokedKeyPrefix+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidSession
	}

	id := &model.Identity{
		SessionID: claims.ID,
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		Provider:  claims.Provider,
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Revoke invalidates a session before its expiry.
func (s *SessionService) Revoke(ctx context.Context, id *model.Identity) error {
	if id == nil || id.SessionID == "" {
		return errors.New("session has no id")
	}
	ttl := id.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedKeyPrefix+id.SessionID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.log.WithField("user_id", id.UserID).Info("Session revoked")
	return nil
}
