package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/middleware"
	"patrimonio-api/internal/model"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/internal/service"
	"patrimonio-api/pkg/apierror"
	"patrimonio-api/pkg/response"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *service.SessionService
	cookie   SessionCookie
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, cookie SessionCookie, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		cookie:   cookie,
		validate: newValidator(),
		log:      logger.WithField("component", "auth-handler"),
	}
}

// RegisterRequest represents the request body for account registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=256"`
	Email    string `json:"email" validate:"required,email,max=256"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if errors.Is(err, rowproxy.ErrDuplicateKey) {
		response.Error(w, apierror.DuplicateKey("This email is already registered"))
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	response.Created(w, "User registered", user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
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
	response.Message(w, http.StatusOK, "Login successful", identity)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		if err := h.sessions.Revoke(r.Context(), identity); err != nil {
			writeError(w, r, h.log, err)
			return
		}
	}

	h.cookie.clear(w)
	response.Message(w, http.StatusOK, "Logged out", nil)
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := h.sessions.Parse(r.Context(), h.cookie.read(r))
	if err != nil {
		response.OK(w, SessionResponse{Authenticated: false})
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), identity.UserID)
	if errors.Is(err, rowproxy.ErrNotFound) {
		response.OK(w, SessionResponse{Authenticated: false})
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	response.OK(w, SessionResponse{Authenticated: true, User: user})
}
