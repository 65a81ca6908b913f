package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	st := newMemStore()

	rec := httptest.NewRecorder()
	registerHandler(st)(rec, authedRequest(t, http.MethodPost, "/api/register",
		map[string]string{"email": "ari@example.org", "password": "correct horse"}, 0))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Token string `json:"token"`
		ID    int    `json:"id"`
	}
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, 1, created.ID)

	rec = httptest.NewRecorder()
	loginHandler(st)(rec, authedRequest(t, http.MethodPost, "/api/login",
		map[string]string{"email": "ari@example.org", "password": "correct horse"}, 0))
	require.Equal(t, http.StatusOK, rec.Code)

	var logged struct {
		Token string `json:"token"`
		ID    int    `json:"id"`
	}
	decodeBody(t, rec, &logged)
	assert.Equal(t, created.ID, logged.ID)

	// The issued token authenticates requests
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+logged.Token)
	userID, err := authStrategy.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, userID)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing email", map[string]string{"password": "long enough"}, "email is required"},
		{"short password", map[string]string{"email": "a@b.c", "password": "short"},
			"password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			registerHandler(newMemStore())(rec, authedRequest(t, http.MethodPost, "/api/register", tt.body, 0))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body struct {
				Errors []string `json:"errors"`
			}
			decodeBody(t, rec, &body)
			assert.Contains(t, body.Errors, tt.want)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := newMemStore()
	_, err := st.CreateUser("ari@example.org", "hash")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	registerHandler(st)(rec, authedRequest(t, http.MethodPost, "/api/register",
		map[string]string{"email": "ari@example.org", "password": "long enough"}, 0))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "Email already registered", body["message"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	st := newMemStore()
	rec := httptest.NewRecorder()
	registerHandler(st)(rec, authedRequest(t, http.MethodPost, "/api/register",
		map[string]string{"email": "ari@example.org", "password": "correct horse"}, 0))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"wrong password", map[string]string{"email": "ari@example.org", "password": "wrong horse"}},
		{"unknown email", map[string]string{"email": "nobody@example.org", "password": "correct horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			loginHandler(st)(rec, authedRequest(t, http.MethodPost, "/api/login", tt.body, 0))

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			decodeBody(t, rec, &body)
			assert.Equal(t, "Invalid credentials", body["message"])
		})
	}
}

func TestJWTStrategy(t *testing.T) {
	strategy := jwtStrategy{secret: jwtSecret}

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := strategy.Authenticate(req)
		assert.ErrorIs(t, err, errUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		_, err := strategy.Authenticate(req)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := jwtStrategy{secret: []byte("some other secret entirely")}
		token, err := issueToken(7)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		_, err = other.Authenticate(req)
		assert.Error(t, err)
	})

	t.Run("token via query param", func(t *testing.T) {
		token, err := issueToken(7)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/ws/chat?token="+token, nil)
		userID, err := strategy.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, 7, userID)
	})
}

func TestAuthenticateTouchesLastOnline(t *testing.T) {
	st := newMemStore()
	handler := authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, 5, r.Context().Value(userIDKey).(int))
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler(rec, authedRequest(t, http.MethodGet, "/", nil, 5))
	require.Equal(t, http.StatusNoContent, rec.Code)

	online, err := st.IsOnlineNow(5)
	require.NoError(t, err)
	assert.True(t, online)
}
