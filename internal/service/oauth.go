package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/model"
	"patrimonio-api/pkg/uid"
)

const oauthStatePrefix = "oauth:state:"

// GoogleOAuth runs the Google authorization-code flow. State values are kept
// in the cache so callbacks can land on any instance sharing it.
type GoogleOAuth struct {
	cfg      *oauth2.Config
	cache    cache.Cache
	stateTTL time.Duration
	log      logrus.FieldLogger
}

// NewGoogleOAuth creates the flow for a client id and secret.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string, c cache.Cache, stateTTL time.Duration, logger logrus.FieldLogger) *GoogleOAuth {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				oauth2api.UserinfoEmailScope,
				oauth2api.UserinfoProfileScope,
				oauth2api.OpenIDScope,
			},
			Endpoint: google.Endpoint,
		},
		cache:    c,
		stateTTL: stateTTL,
		log:      logger.WithField("component", "google-oauth"),
	}
}

// AuthURL returns the consent page URL and the fresh single-use state it
// carries. The caller binds the state to the browser.
func (g *GoogleOAuth) AuthURL(ctx context.Context) (authURL, state string, err error) {
	state = uid.New()
	if err := g.cache.Set(ctx, oauthStatePrefix+state, []byte("1"), g.stateTTL); err != nil {
		return "", "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), state, nil
}

// StateTTL is how long a state stays redeemable.
func (g *GoogleOAuth) StateTTL() time.Duration {
	return g.stateTTL
}

// Exchange consumes state, trades code for a token and fetches the profile.
func (g *GoogleOAuth) Exchange(ctx context.Context, state, code string) (*model.ExternalProfile, error) {
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}
	if _, err := g.cache.GetDel(ctx, oauthStatePrefix+state); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth code exchange: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(g.cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("oauth profile client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("oauth profile fetch: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		g.log.WithField("email", info.Email).Warn("Rejecting Google profile with unverified email")
		return nil, &ValidationError{Fields: map[string]string{"email": "is not verified by Google"}}
	}

	return &model.ExternalProfile{
		Email:      info.Email,
		Name:       info.Name,
		PictureURL: info.Picture,
		Provider:   model.ProviderGoogle,
	}, nil
}
