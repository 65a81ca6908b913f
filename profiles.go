package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// birthDateLayout is the wire format for birth dates.
const birthDateLayout = "2006-01-02"

type profileRequest struct {
	DisplayName        string   `json:"displayName"`
	Bio                string   `json:"bio"`
	BirthDate          string   `json:"birthDate"`
	Gender             string   `json:"gender"`
	Orientation        string   `json:"orientation"`
	Location           string   `json:"location"`
	RelationshipStyles []string `json:"relationshipStyles"`
	Practices          []string `json:"practices"`
	Values             []string `json:"values"`
	Intentions         []string `json:"intentions"`
	Visible            *bool    `json:"visible"`
}

// POST /api/profiles
func createProfileHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var req profileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var errs []string
		if strings.TrimSpace(req.DisplayName) == "" {
			errs = append(errs, "displayName is required")
		}
		var birth *time.Time
		if req.BirthDate != "" {
			t, err := time.Parse(birthDateLayout, req.BirthDate)
			if err != nil {
				errs = append(errs, "birthDate must be formatted as YYYY-MM-DD")
			} else {
				birth = &t
			}
		}
		if len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}

		visible := true
		if req.Visible != nil {
			visible = *req.Visible
		}
		userID := r.Context().Value(userIDKey).(int)
		created, err := st.CreateProfile(Profile{
			UserID:             userID,
			DisplayName:        req.DisplayName,
			Bio:                req.Bio,
			BirthDate:          birth,
			Gender:             req.Gender,
			Orientation:        req.Orientation,
			Location:           req.Location,
			RelationshipStyles: emptyIfNil(req.RelationshipStyles),
			Practices:          emptyIfNil(req.Practices),
			Values:             emptyIfNil(req.Values),
			Intentions:         emptyIfNil(req.Intentions),
			Visible:            visible,
		})
		if err != nil {
			if errors.Is(err, ErrProfileExists) {
				writeError(w, http.StatusBadRequest, "Profile already exists")
				return
			}
			writeError(w, http.StatusInternalServerError, "Could not save profile")
			log.Println("Error saving profile:", err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})
}

// meProfileRouter handles GET and PUT on /api/profiles/me.
func meProfileRouter(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		switch r.Method {
		case http.MethodGet:
			p, err := st.GetProfile(userID)
			if err != nil {
				profileLoadError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
		case http.MethodPut:
			updateOwnProfile(st, w, r, userID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
}

type profilePatchRequest struct {
	DisplayName        *string   `json:"displayName"`
	Bio                *string   `json:"bio"`
	BirthDate          *string   `json:"birthDate"`
	Gender             *string   `json:"gender"`
	Orientation        *string   `json:"orientation"`
	Location           *string   `json:"location"`
	RelationshipStyles *[]string `json:"relationshipStyles"`
	Practices          *[]string `json:"practices"`
	Values             *[]string `json:"values"`
	Intentions         *[]string `json:"intentions"`
	Visible            *bool     `json:"visible"`
}

// PUT /api/profiles/me — partial update, absent fields stay untouched.
func updateOwnProfile(st Store, w http.ResponseWriter, r *http.Request, userID int) {
	var req profilePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs []string
	patch := ProfilePatch{
		DisplayName:        req.DisplayName,
		Bio:                req.Bio,
		Gender:             req.Gender,
		Orientation:        req.Orientation,
		Location:           req.Location,
		RelationshipStyles: req.RelationshipStyles,
		Practices:          req.Practices,
		Values:             req.Values,
		Intentions:         req.Intentions,
		Visible:            req.Visible,
	}
	if req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) == "" {
		errs = append(errs, "displayName cannot be empty")
	}
	if req.BirthDate != nil {
		t, err := time.Parse(birthDateLayout, *req.BirthDate)
		if err != nil {
			errs = append(errs, "birthDate must be formatted as YYYY-MM-DD")
		} else {
			patch.BirthDate = &t
		}
	}
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	updated, err := st.UpdateProfile(userID, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not update profile")
		log.Println("Error updating profile:", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GET /api/profiles/search
func searchProfilesHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		q := r.URL.Query()
		var errs []string
		f := SearchFilters{
			Location:   strings.TrimSpace(q.Get("location")),
			Practices:  splitTags(q.Get("practices")),
			Values:     splitTags(q.Get("values")),
			Intentions: splitTags(q.Get("intentions")),
		}
		f.MinAge = parseIntParam(q.Get("minAge"), "minAge", &errs)
		f.MaxAge = parseIntParam(q.Get("maxAge"), "maxAge", &errs)
		f.Limit = parseIntParam(q.Get("limit"), "limit", &errs)
		f.Offset = parseIntParam(q.Get("offset"), "offset", &errs)
		if f.MinAge > 0 && f.MaxAge > 0 && f.MinAge > f.MaxAge {
			errs = append(errs, "minAge cannot exceed maxAge")
		}
		if len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}

		viewerID := r.Context().Value(userIDKey).(int)
		results, err := st.SearchProfiles(viewerID, f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Database error")
			log.Println("Error searching profiles:", err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})
}

// profilesDispatcher routes /api/profiles/* to me, search or {id}.
func profilesDispatcher(st Store) http.HandlerFunc {
	me := meProfileRouter(st)
	search := searchProfilesHandler(st)
	byID := getProfileHandler(st)
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		// parts[0] == "api", parts[1] == "profiles"
		if len(parts) != 3 {
			http.NotFound(w, r)
			return
		}
		switch parts[2] {
		case "me":
			me.ServeHTTP(w, r)
		case "search":
			search.ServeHTTP(w, r)
		default:
			byID.ServeHTTP(w, r)
		}
	}
}

// GET /api/profiles/{id} — hidden profiles 404 like missing ones, so
// visibility is not revealed.
func getProfileHandler(st Store) http.HandlerFunc {
	return authenticate(st, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		targetID, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		viewerID := r.Context().Value(userIDKey).(int)
		p, err := st.GetProfile(targetID)
		if err != nil {
			profileLoadError(w, err)
			return
		}
		if !p.Visible && viewerID != targetID {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	})
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseIntParam(s, name string, errs *[]string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		*errs = append(*errs, name+" must be a non-negative integer")
		return 0
	}
	return n
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
