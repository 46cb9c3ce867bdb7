package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues JWTs for the single admin account configured via
// environment. There is no user table: backup administration is a
// one-operator surface.
type AuthHandler struct {
	AdminUser     string
	AdminPassHash string // bcrypt; empty means username-only login (dev)
	Secret        []byte
	ExpireHours   int
}

// Login verifies the admin credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if input.Username != h.AdminUser {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if h.AdminPassHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(h.AdminPassHash), []byte(input.Password)); err != nil {
			JSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
	}

	expire := h.ExpireHours
	if expire <= 0 {
		expire = 24
	}
	claims := jwt.MapClaims{
		"sub": h.AdminUser,
		"exp": time.Now().Add(time.Duration(expire) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.Secret)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": signed})
}
