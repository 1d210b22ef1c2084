package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/logging"
)

func TestGoogleOAuth_AuthURLStoresState(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	defer c.Close()
	flow := NewGoogleOAuth("client-id", "client-secret", "http://localhost:8080/auth/google/callback", c, time.Minute, logging.Discard())

	raw, issued, err := flow.AuthURL(ctx)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "openid")

	state := q.Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, issued, state)
	ok, err := c.Exists(ctx, oauthStatePrefix+state)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGoogleOAuth_ExchangeRejectsUnknownState(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	defer c.Close()
	flow := NewGoogleOAuth("client-id", "client-secret", "http://localhost/cb", c, time.Minute, logging.Discard())

	_, err := flow.Exchange(ctx, "forged", "code")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = flow.Exchange(ctx, "", "code")
	assert.ErrorIs(t, err, ErrInvalidState)
}
