package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/jaevor/go-nanoid"

	"katalog-linkow/internal/auth"
)

type LoginRequest struct {
	Password string `json:"password" example:"password123"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// @Summary      Unlocks the catalog
// @Description  Verifies the global password, caches it for the session and returns a short-lived access token plus a refresh token. The first ever login sets the global password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Global password"
// @Success      200            {object}  TokenResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid password"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "Password is required", http.StatusBadRequest)
		return
	}

	if s.vault.HasGlobal() {
		if !s.vault.VerifyGlobal(req.Password) {
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}
	} else {
		// Pierwsze uruchomienie: to hasło staje się hasłem globalnym.
		if err := s.vault.SetGlobal(req.Password); err != nil {
			log.Printf("ERROR: Failed to store global password hash: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	// Plaintext zostaje tylko w pamięci sesji.
	s.secrets.SetGlobal(req.Password)

	accessToken, err := auth.GenerateJWT("owner", s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	generateID, err := nanoid.Standard(40)
	if err != nil {
		log.Printf("CRITICAL: Failed to initialize nanoid generator: %v", err)
		http.Error(w, "Internal server error (token generation)", http.StatusInternalServerError)
		return
	}
	refreshToken := generateID()

	s.sessionMu.Lock()
	s.sessions[refreshToken] = time.Now().Add(24 * time.Hour)
	s.sessionMu.Unlock()

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// @Summary      Refresh access token
// @Description  Exchanges a valid refresh token for a new access token and a new refresh token (rotation).
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      200                   {object}  TokenResponse
// @Failure      400                   {string}  string "Invalid request body or missing token"
// @Failure      401                   {string}  string "Invalid or expired refresh token"
// @Router       /auth/refresh [post]
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		http.Error(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	s.sessionMu.Lock()
	expiry, ok := s.sessions[req.RefreshToken]
	if ok {
		delete(s.sessions, req.RefreshToken)
	}
	s.sessionMu.Unlock()

	if !ok || time.Now().After(expiry) {
		http.Error(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	accessToken, err := auth.GenerateJWT("owner", s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	generateID, _ := nanoid.Standard(40)
	newRefreshToken := generateID()

	s.sessionMu.Lock()
	s.sessions[newRefreshToken] = time.Now().Add(24 * time.Hour)
	s.sessionMu.Unlock()

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	})
}

// @Summary      Logout
// @Description  Drops every session and wipes all cached plaintext passwords.
// @Tags         auth
// @Security     BearerAuth
// @Success      204  {null}  nil "No Content"
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionMu.Lock()
	s.sessions = make(map[string]time.Time)
	s.sessionMu.Unlock()

	s.secrets.Clear()

	w.WriteHeader(http.StatusNoContent)
}
