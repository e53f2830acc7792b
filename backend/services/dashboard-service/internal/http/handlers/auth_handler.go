package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	libhttp "iotdashboard/backend/libs/httpserver"
	"iotdashboard/backend/services/dashboard-service/internal/auth"
)

// LoginService issues tokens for viewer credentials.
type LoginService interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler serves POST /auth/token.
type AuthHandler struct {
	service LoginService
	logger  *zap.Logger
}

// NewAuthHandler returns handler.
func NewAuthHandler(svc LoginService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ServeHTTP exchanges credentials for a bearer token.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		libhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Username == "" || req.Password == "" {
		libhttp.WriteError(w, http.StatusBadRequest, "username and password required")
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		libhttp.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		libhttp.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	libhttp.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}
