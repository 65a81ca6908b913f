package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("fluide_dev_secret_change_in_production")
}

var jwtSecret = getJWTSecret()

// AuthStrategy resolves the authenticated user for a request. Exactly one
// strategy is active, selected from AUTH_STRATEGY at startup.
type AuthStrategy interface {
	Authenticate(r *http.Request) (int, error)
}

var errUnauthorized = errors.New("unauthorized")

// authStrategy is set once in main (and by tests) before the server starts.
var authStrategy AuthStrategy

// selectAuthStrategy builds the configured strategy. "jwt" is the default;
// "google" verifies Google ID tokens and maps them onto local accounts.
func selectAuthStrategy(st Store) AuthStrategy {
	switch os.Getenv("AUTH_STRATEGY") {
	case "", "jwt":
		return jwtStrategy{secret: jwtSecret}
	case "google":
		clientID := os.Getenv("GOOGLE_CLIENT_ID")
		if clientID == "" {
			log.Fatal("AUTH_STRATEGY=google requires GOOGLE_CLIENT_ID")
		}
		return googleStrategy{
			clientID: clientID,
			store:    st,
			client:   &http.Client{Timeout: 10 * time.Second},
		}
	default:
		log.Fatalf("Unknown AUTH_STRATEGY %q", os.Getenv("AUTH_STRATEGY"))
		return nil
	}
}

// jwtStrategy validates bearer tokens this backend issued itself.
type jwtStrategy struct {
	secret []byte
}

func (s jwtStrategy) Authenticate(r *http.Request) (int, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return 0, errUnauthorized
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errUnauthorized
	}

	// jwt.MapClaims stores numbers as float64 by default
	fv, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errUnauthorized
	}
	return int(fv), nil
}

// googleStrategy verifies a Google ID token against the tokeninfo endpoint
// and maps the verified email onto a local account.
type googleStrategy struct {
	clientID string
	store    Store
	client   *http.Client
}

func (s googleStrategy) Authenticate(r *http.Request) (int, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return 0, errUnauthorized
	}

	resp, err := s.client.Get("https://oauth2.googleapis.com/tokeninfo?id_token=" + tokenStr)
	if err != nil {
		return 0, errUnauthorized
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errUnauthorized
	}

	var info struct {
		Aud           string `json:"aud"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, errUnauthorized
	}
	if info.Aud != s.clientID || info.EmailVerified != "true" || info.Email == "" {
		return 0, errUnauthorized
	}

	id, _, err := s.store.UserByEmail(info.Email)
	if err != nil {
		return 0, errUnauthorized
	}
	return id, nil
}

// bearerToken pulls the token from the Authorization header, falling back
// to the `token` query parameter for websocket clients (browsers cannot set
// headers on WS upgrade requests).
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authenticate wraps a handler with the active auth strategy and stores the
// caller's user ID in the request context.
func authenticate(st Store, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authStrategy.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err := st.TouchLastOnline(userID); err != nil {
			log.Println("Failed to update last_online:", err)
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func issueToken(userID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}

func registerHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		type registerRequest struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Password = strings.TrimSpace(req.Password)
		var errs []string
		if req.Email == "" {
			errs = append(errs, "email is required")
		}
		if len(req.Password) < 8 {
			errs = append(errs, "password must be at least 8 characters")
		}
		if len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not hash password")
			log.Println("Error hashing password:", err)
			return
		}

		newID, err := st.CreateUser(req.Email, string(hashed))
		if err != nil {
			if errors.Is(err, ErrEmailExists) {
				writeError(w, http.StatusConflict, "Email already registered")
				return
			}
			writeError(w, http.StatusInternalServerError, "Could not create account")
			log.Println("Error saving user:", err)
			return
		}

		if err := st.TouchLastOnline(newID); err != nil {
			log.Println("Failed to update last_online for new user:", err)
		}

		// Token for automatic login after registration
		tokenString, err := issueToken(newID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not generate token")
			log.Println("Error generating token for new user:", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{"token": tokenString, "id": newID})
	}
}

func loginHandler(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		type loginRequest struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}

		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.Password = strings.TrimSpace(req.Password)
		if req.Email == "" || req.Password == "" {
			writeValidationError(w, []string{"email and password are required"})
			return
		}

		userID, passwordHash, err := st.UserByEmail(req.Email)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		} else if err != nil {
			log.Println("Error querying user:", err)
			writeError(w, http.StatusInternalServerError, "Database error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		if err := st.TouchLastOnline(userID); err != nil {
			log.Println("Failed to update last_online:", err)
			// Don't fail login, just log the error
		}

		tokenString, err := issueToken(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not generate token")
			log.Println("Error generating token:", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"token": tokenString, "id": userID})
	}
}
