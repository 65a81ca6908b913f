package main

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrProfileExists = errors.New("profile already exists")
	ErrEmailExists   = errors.New("email already exists")
	ErrNotMatched    = errors.New("users are not matched")
)

// SearchFilters holds the parsed query filters for profile search.
// Zero values mean "not set".
type SearchFilters struct {
	MinAge     int
	MaxAge     int
	Location   string
	Practices  []string
	Values     []string
	Intentions []string
	Limit      int
	Offset     int
}

// ProfilePatch carries a partial profile update. Nil fields are left
// unchanged.
type ProfilePatch struct {
	DisplayName        *string
	Bio                *string
	BirthDate          *time.Time
	Gender             *string
	Orientation        *string
	Location           *string
	RelationshipStyles *[]string
	Practices          *[]string
	Values             *[]string
	Intentions         *[]string
	Visible            *bool
}

// Store is the persistence boundary for the whole backend. The production
// implementation is Postgres (store_pg.go); tests use an in-memory double.
type Store interface {
	// Accounts
	CreateUser(email, passwordHash string) (int, error)
	UserByEmail(email string) (id int, passwordHash string, err error)
	TouchLastOnline(userID int) error
	IsOnlineNow(userID int) (bool, error)

	// Profiles
	CreateProfile(p Profile) (Profile, error)
	GetProfile(userID int) (Profile, error)
	UpdateProfile(userID int, patch ProfilePatch) (Profile, error)
	SearchProfiles(viewerID int, f SearchFilters) ([]Profile, error)
	ProfilesByIDs(ctx context.Context, ids []int) (map[int]Profile, error)
	SetProfilePhoto(userID int, file string) error

	// Events
	CreateEvent(e Event) (Event, error)
	UpcomingEvents(limit int) ([]Event, error)

	// Likes & matches
	Like(userID, targetID int) (matched bool, err error)
	Unlike(userID, targetID int) error
	Matches(userID int) ([]int, error)
	IsMatched(a, b int) (bool, error)

	// Messaging
	SaveMessage(from, to int, body string) (Message, error)
	MessagesWith(userID, otherID, limit int, before *time.Time) ([]Message, error)
	MarkRead(userID, otherID int) error
	ChatSummaries(userID int) ([]ChatSummary, error)
}

// ageWindow converts an inclusive age range into birth-date cutoffs.
// Someone is at least minAge when born on or before `latest`, and at most
// maxAge when born strictly after `earliest` (on `earliest` itself they
// turn maxAge+1 that day). Nil means the bound is not set.
func ageWindow(minAge, maxAge int, now time.Time) (latest, earliest *time.Time) {
	if minAge > 0 {
		t := now.AddDate(-minAge, 0, 0)
		latest = &t
	}
	if maxAge > 0 {
		t := now.AddDate(-(maxAge + 1), 0, 0)
		earliest = &t
	}
	return latest, earliest
}
