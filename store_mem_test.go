package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is the in-memory Store double used by the handler tests. It
// mirrors the Postgres implementation's semantics closely enough for the
// behaviors under test (duplicate detection, partial updates, age-window
// filtering, match gating).
type memStore struct {
	mu        sync.Mutex
	nextUser  int
	emails    map[string]int
	hashes    map[int]string
	online    map[int]time.Time
	profiles  map[int]Profile
	nextEvent int
	events    []Event
	likes     map[[2]int]bool
	nextMsg   int64
	messages  []memMessage
	nextConv  int
	convs     map[[2]int]int
}

type memMessage struct {
	Message
	read bool
}

func newMemStore() *memStore {
	return &memStore{
		emails:   make(map[string]int),
		hashes:   make(map[int]string),
		online:   make(map[int]time.Time),
		profiles: make(map[int]Profile),
		likes:    make(map[[2]int]bool),
		convs:    make(map[[2]int]int),
	}
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// --- Accounts ---

func (s *memStore) CreateUser(email, passwordHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[email]; ok {
		return 0, ErrEmailExists
	}
	s.nextUser++
	s.emails[email] = s.nextUser
	s.hashes[s.nextUser] = passwordHash
	return s.nextUser, nil
}

func (s *memStore) UserByEmail(email string) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return 0, "", ErrNotFound
	}
	return id, s.hashes[id], nil
}

func (s *memStore) TouchLastOnline(userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = time.Now()
	return nil
}

func (s *memStore) IsOnlineNow(userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.online[userID]
	return ok && time.Since(t) < 90*time.Second, nil
}

// --- Profiles ---

func (s *memStore) CreateProfile(p Profile) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; ok {
		return Profile{}, ErrProfileExists
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.UserID] = p
	return p, nil
}

func (s *memStore) GetProfile(userID int) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) UpdateProfile(userID int, patch ProfilePatch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.BirthDate != nil {
		t := *patch.BirthDate
		p.BirthDate = &t
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Orientation != nil {
		p.Orientation = *patch.Orientation
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.RelationshipStyles != nil {
		p.RelationshipStyles = *patch.RelationshipStyles
	}
	if patch.Practices != nil {
		p.Practices = *patch.Practices
	}
	if patch.Values != nil {
		p.Values = *patch.Values
	}
	if patch.Intentions != nil {
		p.Intentions = *patch.Intentions
	}
	if patch.Visible != nil {
		p.Visible = *patch.Visible
	}
	p.UpdatedAt = time.Now()
	s.profiles[userID] = p
	return p, nil
}

func (s *memStore) SearchProfiles(viewerID int, f SearchFilters) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, earliest := ageWindow(f.MinAge, f.MaxAge, time.Now())
	var out []Profile
	for _, p := range s.profiles {
		if !p.Visible || p.UserID == viewerID {
			continue
		}
		if latest != nil && (p.BirthDate == nil || p.BirthDate.After(*latest)) {
			continue
		}
		if earliest != nil && (p.BirthDate == nil || !p.BirthDate.After(*earliest)) {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
			continue
		}
		if len(f.Practices) > 0 && !overlaps(p.Practices, f.Practices) {
			continue
		}
		if len(f.Values) > 0 && !overlaps(p.Values, f.Values) {
			continue
		}
		if len(f.Intentions) > 0 && !overlaps(p.Intentions, f.Intentions) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if f.Offset >= len(out) {
		return []Profile{}, nil
	}
	out = out[f.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func overlaps(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func (s *memStore) ProfilesByIDs(_ context.Context, ids []int) (map[int]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) SetProfilePhoto(userID int, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.PhotoFile = file
	s.profiles[userID] = p
	return nil
}

// --- Events ---

func (s *memStore) CreateEvent(e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	e.ID = s.nextEvent
	s.events = append(s.events, e)
	return e, nil
}

func (s *memStore) UpcomingEvents(limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	now := time.Now()
	for _, e := range s.events {
		if e.StartsAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Event{}
	}
	return out, nil
}

// --- Likes & matches ---

func (s *memStore) Like(userID, targetID int) (bool, error) {
	s.mu.Lock()
	s.likes[[2]int{userID, targetID}] = true
	s.mu.Unlock()
	return s.IsMatched(userID, targetID)
}

func (s *memStore) Unlike(userID, targetID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes, [2]int{userID, targetID})
	return nil
}

func (s *memStore) Matches(userID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for key := range s.likes {
		if key[0] == userID && s.likes[[2]int{key[1], key[0]}] {
			ids = append(ids, key[1])
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *memStore) IsMatched(a, b int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likes[[2]int{a, b}] && s.likes[[2]int{b, a}], nil
}

// --- Messaging ---

func (s *memStore) SaveMessage(from, to int, body string) (Message, error) {
	matched, err := s.IsMatched(from, to)
	if err != nil {
		return Message{}, err
	}
	if !matched {
		return Message{}, ErrNotMatched
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(from, to)
	convID, ok := s.convs[key]
	if !ok {
		s.nextConv++
		convID = s.nextConv
		s.convs[key] = convID
	}
	s.nextMsg++
	msg := Message{
		ID:             s.nextMsg,
		ConversationID: convID,
		From:           from,
		To:             to,
		Body:           body,
		SentAt:         time.Now(),
	}
	s.messages = append(s.messages, memMessage{Message: msg})
	return msg, nil
}

func (s *memStore) MessagesWith(userID, otherID, limit int, before *time.Time) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, ok := s.convs[pairKey(userID, otherID)]
	if !ok {
		return []Message{}, nil
	}
	var out []Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.ConversationID != convID {
			continue
		}
		if before != nil && !m.SentAt.Before(*before) {
			continue
		}
		out = append(out, m.Message)
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (s *memStore) MarkRead(userID, otherID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, ok := s.convs[pairKey(userID, otherID)]
	if !ok {
		return nil
	}
	for i := range s.messages {
		if s.messages[i].ConversationID == convID && s.messages[i].From == otherID {
			s.messages[i].read = true
		}
	}
	return nil
}

func (s *memStore) ChatSummaries(userID int) ([]ChatSummary, error) {
	ids, err := s.Matches(userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]ChatSummary, 0, len(ids))
	for _, peer := range ids {
		sum := ChatSummary{PeerID: peer}
		if convID, ok := s.convs[pairKey(userID, peer)]; ok {
			for _, m := range s.messages {
				if m.ConversationID != convID {
					continue
				}
				t := m.SentAt
				if sum.LastMessageAt == nil || t.After(*sum.LastMessageAt) {
					sum.LastMessageAt = &t
				}
				if m.From == peer && !m.read {
					sum.Unread = true
				}
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
