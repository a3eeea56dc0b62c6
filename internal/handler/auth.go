package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albizan/shortify-backend/internal/model"
)

// AuthService is the slice of service.AuthService the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*model.PublicUser, error)
	Login(ctx context.Context, email, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string)
	ResendConfirmation(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, token, password1, password2 string) (*model.PublicUser, error)
	ConfirmEmail(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (*model.PublicUser, error)
}

// LoginResponse carries the session token returned by /auth/login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// AuthHandler serves /auth/* and /mail/confirm/{token}.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// HandleRegister creates an inactive account: POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin exchanges credentials for a session token: POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{AccessToken: token})
}

// HandleAmnesia starts a password reset: POST /auth/amnesia. The answer is
// the same whether or not the address is registered.
func (h *AuthHandler) HandleAmnesia(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.auth.RequestPasswordReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "if the address is registered, a reset link is on its way",
	})
}

// HandleResendConfirmation mails a new activation link:
// POST /auth/resend-confirmation-mail.
func (h *AuthHandler) HandleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ResendConfirmation(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "confirmation email sent"})
}

// HandleChangePassword completes a reset: POST /auth/change-password.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.ChangePassword(r.Context(), req.Token, req.Password1, req.Password2)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleConfirmEmail activates an account: GET /mail/confirm/{token}.
func (h *AuthHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.auth.ConfirmEmail(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "email confirmed"})
}
