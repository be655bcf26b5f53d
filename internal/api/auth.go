package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultTokenTTLMinutes applies when the configuration leaves the
// access token TTL unset.
const defaultTokenTTLMinutes = 15

// loginRequest is the request body for POST /auth/login.
//
// There are no usernames: the two site credentials ARE the identities,
// exactly as on the keypad. The role comes back from the store.
type loginRequest struct {
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin verifies a site credential and returns a JWT carrying the
// matched role.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	role, ok, err := s.creds.CheckPassword(r.Context(), req.Password)
	if err != nil {
		s.logger.Error("login credential check failed", "error", err)
		writeInternalError(w, "credential check failed")
		return
	}
	if !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = defaultTokenTTLMinutes
	}

	claims := jwt.MapClaims{
		"sub":  string(role),
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Duration(ttl) * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secCfg.JWT.Secret))
	if err != nil {
		s.logger.Error("token signing failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("API login", "role", string(role))

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		Role:        string(role),
		ExpiresIn:   ttl * 60, // seconds
	})
}

// parseToken validates a signed token and extracts the role claim.
func (s *Server) parseToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.secCfg.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return role, nil
}
