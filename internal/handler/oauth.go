package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/model"
	"patrimonio-api/internal/service"
)

// OAuthFlow runs a third-party authorization-code flow.
type OAuthFlow interface {
	AuthURL(ctx context.Context) (authURL, state string, err error)
	Exchange(ctx context.Context, state, code string) (*model.ExternalProfile, error)
	StateTTL() time.Duration
}

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/auth/google"
)

// OAuthHandler handles the Google sign-in redirect pair.
type OAuthHandler struct {
	flow          OAuthFlow
	auth          *service.AuthService
	sessions      *service.SessionService
	cookie        SessionCookie
	afterLoginURL string
	log           logrus.FieldLogger
}

// NewOAuthHandler creates the handler. flow may be nil when sign-in is not
// configured.
func NewOAuthHandler(flow OAuthFlow, auth *service.AuthService, sessions *service.SessionService, cookie SessionCookie, afterLoginURL string, logger logrus.FieldLogger) *OAuthHandler {
	if afterLoginURL == "" {
		afterLoginURL = "/"
	}
	return &OAuthHandler{
		flow:          flow,
		auth:          auth,
		sessions:      sessions,
		cookie:        cookie,
		afterLoginURL: afterLoginURL,
		log:           logger.WithField("component", "oauth-handler"),
	}
}

// Login handles GET /auth/google/login
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		writeError(w, r, h.log, service.ErrOAuthDisabled)
		return
	}
	url, state, err := h.flow.AuthURL(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     oauthCookiePath,
		MaxAge:   int(h.flow.StateTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback handles GET /auth/google/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		writeError(w, r, h.log, service.ErrOAuthDisabled)
		return
	}

	q := r.URL.Query()
	state := q.Get("state")
	bound := ""
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		bound = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.log.WithField("error", errParam).Warn("Google sign-in cancelled")
		http.Redirect(w, r, h.afterLoginURL, http.StatusFound)
		return
	}

	// the callback must come from the browser that started the flow
	if bound == "" || subtle.ConstantTimeCompare([]byte(bound), []byte(state)) != 1 {
		h.log.Warn("Google callback state does not match this browser")
		writeError(w, r, h.log, service.ErrInvalidState)
		return
	}

	profile, err := h.flow.Exchange(r.Context(), state, q.Get("code"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	user, _, err := h.auth.LoginExternal(r.Context(), *profile)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	token, identity, err := h.sessions.Issue(r.Context(), user)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.cookie.set(w, token, identity.ExpiresAt)
	http.Redirect(w, r, h.afterLoginURL, http.StatusFound)
}
