package main

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// eventsHandler serves GET (upcoming list) and POST (create) on /api/events.
func eventsHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := st.UpcomingEvents(maxUpcomingEvents)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Database error")
				log.Println("Error loading events:", err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		case http.MethodPost:
			createEvent(st, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}

func createEvent(st Store, w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location"`
		StartsAt    string `json:"startsAt"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs []string
	if strings.TrimSpace(req.Title) == "" {
		errs = append(errs, "title is required")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		errs = append(errs, "startsAt must be an RFC 3339 timestamp")
	} else if startsAt.Before(time.Now()) {
		errs = append(errs, "startsAt must be in the future")
	}
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	userID := r.Context().Value(userIDKey).(int)
	created, err := st.CreateEvent(Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    startsAt,
		CreatedBy:   userID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not save event")
		log.Println("Error saving event:", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
