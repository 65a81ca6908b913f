package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// Likes are directional; a mutual pair forms a match, which gates direct
// messaging. Unliking either direction dissolves the match.

// likesRouter handles POST and DELETE on /api/likes/{id}.
func likesRouter(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// /api/likes/{id}
		if len(parts) != 3 {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[2])
		if err != nil || targetID <= 0 {
			http.NotFound(w, r)
			return
		}
		userID := r.Context().Value(userIDKey).(int)
		if targetID == userID {
			writeError(w, http.StatusBadRequest, "Cannot like yourself")
			return
		}

		switch r.Method {
		case http.MethodPost:
			// The target must have a visible profile
			target, err := st.GetProfile(targetID)
			if err != nil || !target.Visible {
				if err != nil && !errors.Is(err, ErrNotFound) {
					log.Println("Error loading profile for like:", err)
				}
				writeError(w, http.StatusNotFound, "Profile not found")
				return
			}
			matched, err := st.Like(userID, targetID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Could not save like")
				log.Println("Error saving like:", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]bool{"matched": matched})
		case http.MethodDelete:
			if err := st.Unlike(userID, targetID); err != nil {
				writeError(w, http.StatusInternalServerError, "Could not remove like")
				log.Println("Error removing like:", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}

// GET /api/matches — matched peers with their profiles.
func matchesHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		userID := r.Context().Value(userIDKey).(int)
		ids, err := st.Matches(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Database error")
			log.Println("Error loading matches:", err)
			return
		}

		profiles, err := st.ProfilesByIDs(r.Context(), ids)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Database error")
			log.Println("Error loading match profiles:", err)
			return
		}

		out := make([]Profile, 0, len(ids))
		for _, id := range ids {
			if p, ok := profiles[id]; ok {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
}
