package main

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func likeRequest(t *testing.T, handler http.HandlerFunc, method string, from, target int) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, authedRequest(t, method, "/api/likes/"+strconv.Itoa(target), nil, from))
	return rec
}

func TestLikeFlowFormsMatch(t *testing.T) {
	st := newMemStore()
	seedProfile(t, st, 1, nil)
	seedProfile(t, st, 2, nil)
	handler := likesRouter(st)

	rec := likeRequest(t, handler, http.MethodPost, 1, 2)
	require.Equal(t, http.StatusCreated, rec.Code)
	var first map[string]bool
	decodeBody(t, rec, &first)
	assert.False(t, first["matched"], "one-way like is not a match")

	rec = likeRequest(t, handler, http.MethodPost, 2, 1)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second map[string]bool
	decodeBody(t, rec, &second)
	assert.True(t, second["matched"], "reciprocal like forms the match")

	matched, err := st.IsMatched(1, 2)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestUnlikeDissolvesMatch(t *testing.T) {
	st := newMemStore()
	seedProfile(t, st, 1, nil)
	seedProfile(t, st, 2, nil)
	handler := likesRouter(st)

	likeRequest(t, handler, http.MethodPost, 1, 2)
	likeRequest(t, handler, http.MethodPost, 2, 1)

	rec := likeRequest(t, handler, http.MethodDelete, 1, 2)
	require.Equal(t, http.StatusNoContent, rec.Code)

	matched, err := st.IsMatched(1, 2)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestLikeRejections(t *testing.T) {
	st := newMemStore()
	seedProfile(t, st, 1, nil)
	seedProfile(t, st, 3, func(p *Profile) { p.Visible = false })
	handler := likesRouter(st)

	t.Run("self like", func(t *testing.T) {
		rec := likeRequest(t, handler, http.MethodPost, 1, 1)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("target without profile", func(t *testing.T) {
		rec := likeRequest(t, handler, http.MethodPost, 1, 99)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("hidden target", func(t *testing.T) {
		rec := likeRequest(t, handler, http.MethodPost, 1, 3)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMatchesHandlerReturnsProfiles(t *testing.T) {
	st := newMemStore()
	seedProfile(t, st, 1, nil)
	seedProfile(t, st, 2, func(p *Profile) { p.DisplayName = "Sam" })
	seedProfile(t, st, 3, func(p *Profile) { p.DisplayName = "Noa" })

	// 1<->2 match, 1->3 one-way only
	for _, pair := range [][2]int{{1, 2}, {2, 1}, {1, 3}} {
		_, err := st.Like(pair[0], pair[1])
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	matchesHandler(st)(rec, authedRequest(t, http.MethodGet, "/api/matches", nil, 1))

	require.Equal(t, http.StatusOK, rec.Code)
	var matches []Profile
	decodeBody(t, rec, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, "Sam", matches[0].DisplayName)
}
