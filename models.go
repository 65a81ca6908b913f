package main

import "time"

// Profile is the community-facing record for a user, distinct from the
// account row. Visibility controls search exposure; profiles are never
// hard-deleted.
type Profile struct {
	UserID             int        `json:"userId"`
	DisplayName        string     `json:"displayName"`
	Bio                string     `json:"bio"`
	BirthDate          *time.Time `json:"birthDate,omitempty"`
	Gender             string     `json:"gender"`
	Orientation        string     `json:"orientation"`
	Location           string     `json:"location"`
	RelationshipStyles []string   `json:"relationshipStyles"`
	Practices          []string   `json:"practices"`
	Values             []string   `json:"values"`
	Intentions         []string   `json:"intentions"`
	Visible            bool       `json:"visible"`
	PhotoFile          string     `json:"photoFile,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Age returns the profile's age in full years at the given time, or -1
// when the birth date is not set.
func (p Profile) Age(now time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	b := *p.BirthDate
	years := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		years--
	}
	return years
}

// Event is a community event candidates for recommendations are drawn from.
type Event struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
	CreatedBy   int       `json:"createdBy"`
}

// --- Ephemeral model results. Produced per request, never persisted. ---

type CompatibilityScore struct {
	Score           int      `json:"score"`
	Explanation     string   `json:"explanation"`
	Strengths       []string `json:"strengths"`
	Challenges      []string `json:"challenges"`
	Recommendations []string `json:"recommendations"`
}

type Resource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type ChatAnswer struct {
	Message     string     `json:"message"`
	Suggestions []string   `json:"suggestions"`
	Resources   []Resource `json:"resources"`
}

type ModerationResult struct {
	IsAppropriate bool     `json:"isAppropriate"`
	Reasons       []string `json:"reasons"`
	Severity      string   `json:"severity"` // "low" | "medium" | "high"
	Suggestions   []string `json:"suggestions"`
}

type EventRecommendation struct {
	EventTitle string `json:"eventTitle"`
	Reason     string `json:"reason"`
	Score      int    `json:"score"`
}

// Message is a direct message between two matched users.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int       `json:"conversationId"`
	From           int       `json:"from"`
	To             int       `json:"to,omitempty"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}

// ChatSummary is one row of the conversation sidebar: the peer plus the
// latest activity in the shared conversation.
type ChatSummary struct {
	PeerID        int        `json:"peerId"`
	PeerName      string     `json:"peerName"`
	PeerPhoto     string     `json:"peerPhoto,omitempty"`
	IsOnline      bool       `json:"isOnline"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	Unread        bool       `json:"unread"`
}
