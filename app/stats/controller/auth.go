package controller

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie carries the HS256 session issued by the login route.
const SessionCookie = "vs_session"

const sessionTTL = 8 * time.Hour

// ValidateToken checks if the Authorization header contains a valid AdminToken
func (c *Controller) ValidateToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		return c.AdminToken != "" && token == c.AdminToken
	}
	return false
}

// ValidateSessionCookie checks if the session cookie is present and valid
func (c *Controller) ValidateSessionCookie(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	tok, err := jwt.Parse(cookie.Value,
		func(t *jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	return err == nil && tok.Valid
}

// RequireAuth middleware
func (c *Controller) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ValidateToken(r) || c.ValidateSessionCookie(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// IssueSession issues a session cookie
func (c *Controller) IssueSession(w http.ResponseWriter, username string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": now.Add(sessionTTL).Unix(),
		"iat": now.Unix(),
	})
	ss, err := token.SignedString(c.JWTSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    ss,
		Path:     "/",
		HttpOnly: true,
		Secure:   os.Getenv("ENVIRONMENT") == "production",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

// HandleAdminLogin handles admin login
func (c *Controller) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(c.AuthHash) == 0 || in.Username != c.AuthUser {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(c.AuthHash, []byte(in.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := c.IssueSession(w, in.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "unable to issue session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleAdminLogout handles admin logout
func (c *Controller) HandleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}
