package main

import (
	"errors"
	"log"
	"net/http"
	"strings"
)

// The five model-backed endpoints. Each one is single-shot: load what it
// needs from the store, build the prompt, call the gateway, coerce the
// response. Model failures are logged and answered with the use case's
// fallback value and HTTP 200; they never surface as 5xx.

// maxUpcomingEvents bounds how many candidates are offered to the model.
const maxUpcomingEvents = 50

var moderationTypes = map[string]bool{
	"profile":  true,
	"message":  true,
	"event":    true,
	"resource": true,
}

// POST /api/ai/compatibility
func compatibilityHandler(st Store, ai *Assistant) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req struct {
			TargetUserID int `json:"targetUserId"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.TargetUserID <= 0 {
			writeValidationError(w, []string{"targetUserId is required"})
			return
		}

		me := r.Context().Value(userIDKey).(int)
		mine, err := st.GetProfile(me)
		if err != nil {
			profileLoadError(w, err)
			return
		}
		target, err := st.GetProfile(req.TargetUserID)
		if err != nil {
			profileLoadError(w, err)
			return
		}

		score, aiErr := ai.Compatibility(r.Context(), mine, target)
		if aiErr != nil {
			log.Println("Serving compatibility fallback:", aiErr)
		}
		writeJSON(w, http.StatusOK, score)
	})
}

// POST /api/ai/assistant
func assistantHandler(st Store, ai *Assistant) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req struct {
			Question string `json:"question"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			writeValidationError(w, []string{"question is required"})
			return
		}

		// Profile is optional context here; an account without one still
		// gets answers.
		var profilePtr *Profile
		me := r.Context().Value(userIDKey).(int)
		if p, err := st.GetProfile(me); err == nil {
			profilePtr = &p
		}

		answer, aiErr := ai.Answer(r.Context(), req.Question, profilePtr)
		if aiErr != nil {
			log.Println("Serving assistant fallback:", aiErr)
		}
		writeJSON(w, http.StatusOK, answer)
	})
}

// POST /api/ai/moderate
func moderateHandler(st Store, ai *Assistant) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req struct {
			Content string `json:"content"`
			Type    string `json:"type"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		// Validation happens before any model call is made
		var errs []string
		if strings.TrimSpace(req.Content) == "" {
			errs = append(errs, "content is required")
		}
		if !moderationTypes[req.Type] {
			errs = append(errs, "type must be one of: profile, message, event, resource")
		}
		if len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}

		result, aiErr := ai.Moderate(r.Context(), req.Content, req.Type)
		if aiErr != nil {
			log.Println("Serving moderation fallback (fail-open):", aiErr)
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// POST /api/ai/conversation-starters
func conversationStartersHandler(st Store, ai *Assistant) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req struct {
			TargetUserID int `json:"targetUserId"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.TargetUserID <= 0 {
			writeValidationError(w, []string{"targetUserId is required"})
			return
		}

		me := r.Context().Value(userIDKey).(int)
		mine, err := st.GetProfile(me)
		if err != nil {
			profileLoadError(w, err)
			return
		}
		target, err := st.GetProfile(req.TargetUserID)
		if err != nil {
			profileLoadError(w, err)
			return
		}

		suggestions, aiErr := ai.ConversationStarters(r.Context(), mine, target)
		if aiErr != nil {
			log.Println("Serving conversation starter fallback:", aiErr)
		}
		writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
	})
}

// GET /api/ai/event-recommendations
func eventRecommendationsHandler(st Store, ai *Assistant) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		me := r.Context().Value(userIDKey).(int)
		mine, err := st.GetProfile(me)
		if err != nil {
			profileLoadError(w, err)
			return
		}

		events, err := st.UpcomingEvents(maxUpcomingEvents)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Database error")
			log.Println("Error loading upcoming events:", err)
			return
		}

		recs, aiErr := ai.EventRecommendations(r.Context(), mine, events)
		if aiErr != nil {
			log.Println("Serving empty event recommendations:", aiErr)
		}
		writeJSON(w, http.StatusOK, map[string][]EventRecommendation{"recommendations": recs})
	})
}

func profileLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Database error")
	log.Println("Error loading profile:", err)
}
