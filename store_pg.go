package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// pgStore implements Store on top of Postgres.
type pgStore struct {
	db *sql.DB
}

func newPGStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

// --- Accounts ---

func (s *pgStore) CreateUser(email, passwordHash string) (int, error) {
	var id int
	err := s.db.QueryRow(
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	return id, nil
}

func (s *pgStore) UserByEmail(email string) (int, string, error) {
	var id int
	var hash string
	err := s.db.QueryRow("SELECT id, password_hash FROM users WHERE email = $1", email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, "", ErrNotFound
	}
	return id, hash, err
}

func (s *pgStore) TouchLastOnline(userID int) error {
	_, err := s.db.Exec("UPDATE users SET last_online = NOW() WHERE id = $1", userID)
	return err
}

func (s *pgStore) IsOnlineNow(userID int) (bool, error) {
	var online bool
	err := s.db.QueryRow(`
		SELECT COALESCE(last_online > NOW() - INTERVAL '90 seconds', FALSE) AS online
		FROM users
		WHERE id = $1
	`, userID).Scan(&online)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return online, err
}

// --- Profiles ---

const profileColumns = `user_id, display_name, bio, birth_date, gender, orientation, location,
	relationship_styles, practices, value_tags, intentions, visible, COALESCE(photo_file, ''), created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	var birth sql.NullTime
	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Bio, &birth, &p.Gender, &p.Orientation, &p.Location,
		pq.Array(&p.RelationshipStyles), pq.Array(&p.Practices), pq.Array(&p.Values), pq.Array(&p.Intentions),
		&p.Visible, &p.PhotoFile, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	if birth.Valid {
		t := birth.Time
		p.BirthDate = &t
	}
	return p, nil
}

func (s *pgStore) CreateProfile(p Profile) (Profile, error) {
	var exists bool
	if err := s.db.QueryRow("SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)", p.UserID).Scan(&exists); err != nil {
		return Profile{}, err
	}
	if exists {
		return Profile{}, ErrProfileExists
	}
	row := s.db.QueryRow(`
		INSERT INTO profiles (
			user_id, display_name, bio, birth_date, gender, orientation, location,
			relationship_styles, practices, value_tags, intentions, visible
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+profileColumns,
		p.UserID, p.DisplayName, p.Bio, nullableTime(p.BirthDate), p.Gender, p.Orientation, p.Location,
		pq.Array(p.RelationshipStyles), pq.Array(p.Practices), pq.Array(p.Values), pq.Array(p.Intentions),
		p.Visible,
	)
	return scanProfile(row)
}

func (s *pgStore) GetProfile(userID int) (Profile, error) {
	row := s.db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (s *pgStore) UpdateProfile(userID int, patch ProfilePatch) (Profile, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{userID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.Bio != nil {
		add("bio", *patch.Bio)
	}
	if patch.BirthDate != nil {
		add("birth_date", *patch.BirthDate)
	}
	if patch.Gender != nil {
		add("gender", *patch.Gender)
	}
	if patch.Orientation != nil {
		add("orientation", *patch.Orientation)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.RelationshipStyles != nil {
		add("relationship_styles", pq.Array(*patch.RelationshipStyles))
	}
	if patch.Practices != nil {
		add("practices", pq.Array(*patch.Practices))
	}
	if patch.Values != nil {
		add("value_tags", pq.Array(*patch.Values))
	}
	if patch.Intentions != nil {
		add("intentions", pq.Array(*patch.Intentions))
	}
	if patch.Visible != nil {
		add("visible", *patch.Visible)
	}

	row := s.db.QueryRow(
		"UPDATE profiles SET "+strings.Join(sets, ", ")+" WHERE user_id = $1 RETURNING "+profileColumns,
		args...,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (s *pgStore) SearchProfiles(viewerID int, f SearchFilters) ([]Profile, error) {
	where := []string{"visible = TRUE", "user_id <> $1"}
	args := []any{viewerID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	latest, earliest := ageWindow(f.MinAge, f.MaxAge, time.Now())
	if latest != nil {
		add("birth_date IS NOT NULL AND birth_date <= $%d", *latest)
	}
	if earliest != nil {
		add("birth_date IS NOT NULL AND birth_date > $%d", *earliest)
	}
	if f.Location != "" {
		add("location ILIKE '%%' || $%d || '%%'", f.Location)
	}
	if len(f.Practices) > 0 {
		add("practices && $%d", pq.Array(f.Practices))
	}
	if len(f.Values) > 0 {
		add("value_tags && $%d", pq.Array(f.Values))
	}
	if len(f.Intentions) > 0 {
		add("intentions && $%d", pq.Array(f.Intentions))
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf(
		"SELECT %s FROM profiles WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
		profileColumns, strings.Join(where, " AND "), len(args)-1, len(args),
	)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *pgStore) ProfilesByIDs(ctx context.Context, ids []int) (map[int]Profile, error) {
	if len(ids) == 0 {
		return map[int]Profile{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE user_id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]Profile, len(ids))
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

func (s *pgStore) SetProfilePhoto(userID int, file string) error {
	res, err := s.db.Exec("UPDATE profiles SET photo_file = $1, updated_at = NOW() WHERE user_id = $2", file, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Events ---

func (s *pgStore) CreateEvent(e Event) (Event, error) {
	err := s.db.QueryRow(`
		INSERT INTO events (title, description, location, starts_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.Title, e.Description, e.Location, e.StartsAt, e.CreatedBy).Scan(&e.ID)
	return e, err
}

func (s *pgStore) UpcomingEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, title, description, location, starts_at, created_by
		FROM events
		WHERE starts_at > NOW()
		ORDER BY starts_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.CreatedBy); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Likes & matches ---

func (s *pgStore) Like(userID, targetID int) (bool, error) {
	_, err := s.db.Exec(`
		INSERT INTO likes (user_id, target_user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, targetID)
	if err != nil {
		return false, err
	}
	return s.IsMatched(userID, targetID)
}

func (s *pgStore) Unlike(userID, targetID int) error {
	_, err := s.db.Exec("DELETE FROM likes WHERE user_id = $1 AND target_user_id = $2", userID, targetID)
	return err
}

func (s *pgStore) Matches(userID int) ([]int, error) {
	rows, err := s.db.Query(`
		SELECT a.target_user_id
		FROM likes a
		JOIN likes b ON b.user_id = a.target_user_id AND b.target_user_id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *pgStore) IsMatched(a, b int) (bool, error) {
	var matched bool
	err := s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND target_user_id = $2)
		   AND EXISTS (SELECT 1 FROM likes WHERE user_id = $2 AND target_user_id = $1)
	`, a, b).Scan(&matched)
	return matched, err
}

// --- Messaging ---

// SaveMessage persists one direct message, creating the pair's conversation
// row on first use. Requires a mutual match.
func (s *pgStore) SaveMessage(from, to int, body string) (Message, error) {
	matched, err := s.IsMatched(from, to)
	if err != nil {
		return Message{}, err
	}
	if !matched {
		return Message{}, ErrNotMatched
	}

	var msg Message
	err = withTx(context.Background(), s.db, func(tx *sql.Tx) error {
		convID, err := conversationID(tx, from, to)
		if err != nil {
			return err
		}

		var createdAt time.Time
		err = tx.QueryRow(`
			INSERT INTO messages (conversation_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, convID, from, body).Scan(&msg.ID, &createdAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE conversations c
			SET last_message_at = $3,
				unread_for_user1 = CASE WHEN $2 = c.user2_id THEN TRUE ELSE unread_for_user1 END,
				unread_for_user2 = CASE WHEN $2 = c.user1_id THEN TRUE ELSE unread_for_user2 END
			WHERE c.id = $1
		`, convID, from, createdAt)
		if err != nil {
			return err
		}

		msg.ConversationID = convID
		msg.From = from
		msg.To = to
		msg.Body = body
		msg.SentAt = createdAt
		return nil
	})
	return msg, err
}

// conversationID fetches or creates the conversation row for a pair. The
// pair is stored ordered (LEAST, GREATEST) so there is exactly one row.
func conversationID(tx *sql.Tx, a, b int) (int, error) {
	var id int
	err := tx.QueryRow(`
		SELECT id FROM conversations
		WHERE user1_id = LEAST($1::int, $2::int) AND user2_id = GREATEST($1::int, $2::int)
		LIMIT 1
	`, a, b).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.QueryRow(`
			INSERT INTO conversations (user1_id, user2_id)
			VALUES (LEAST($1::int, $2::int), GREATEST($1::int, $2::int))
			ON CONFLICT (user1_id, user2_id) DO NOTHING
			RETURNING id
		`, a, b).Scan(&id)
		if err == sql.ErrNoRows {
			// Race: someone else created first, refetch
			err = tx.QueryRow(`
				SELECT id FROM conversations
				WHERE user1_id = LEAST($1::int, $2::int) AND user2_id = GREATEST($1::int, $2::int)
				LIMIT 1
			`, a, b).Scan(&id)
		}
	}
	return id, err
}

func (s *pgStore) MessagesWith(userID, otherID, limit int, before *time.Time) ([]Message, error) {
	var convID int
	err := s.db.QueryRow(`
		SELECT id FROM conversations
		WHERE user1_id = LEAST($1::int, $2::int) AND user2_id = GREATEST($1::int, $2::int)
		LIMIT 1
	`, userID, otherID).Scan(&convID)
	if err == sql.ErrNoRows {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, convID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.From, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		m.ConversationID = convID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *pgStore) MarkRead(userID, otherID int) error {
	var convID int
	err := s.db.QueryRow(`
		SELECT id FROM conversations
		WHERE user1_id = LEAST($1::int, $2::int) AND user2_id = GREATEST($1::int, $2::int)
		LIMIT 1
	`, userID, otherID).Scan(&convID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	_, _ = s.db.Exec(`
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id = $2 AND is_read IS FALSE
	`, convID, otherID)

	_, err = s.db.Exec(`
		UPDATE conversations c
		SET unread_for_user1 = CASE WHEN $1 = c.user1_id THEN FALSE ELSE unread_for_user1 END,
			unread_for_user2 = CASE WHEN $1 = c.user2_id THEN FALSE ELSE unread_for_user2 END
		WHERE c.id = $2
	`, userID, convID)
	return err
}

// ChatSummaries lists every matched peer with conversation activity. Peer
// names and photos are filled in by the handler via the profile loader.
func (s *pgStore) ChatSummaries(userID int) ([]ChatSummary, error) {
	rows, err := s.db.Query(`
		WITH peers AS (
			SELECT a.target_user_id AS peer_id
			FROM likes a
			JOIN likes b ON b.user_id = a.target_user_id AND b.target_user_id = a.user_id
			WHERE a.user_id = $1
		)
		SELECT p.peer_id,
		       c.last_message_at,
		       COALESCE(CASE WHEN $1 = c.user1_id THEN c.unread_for_user1 ELSE c.unread_for_user2 END, FALSE)
		FROM peers p
		LEFT JOIN conversations c
		  ON c.user1_id = LEAST($1::int, p.peer_id)
		 AND c.user2_id = GREATEST($1::int, p.peer_id)
		ORDER BY COALESCE(c.last_message_at, to_timestamp(0)) DESC, p.peer_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]ChatSummary, 0, 16)
	for rows.Next() {
		var s ChatSummary
		var last sql.NullTime
		if err := rows.Scan(&s.PeerID, &last, &s.Unread); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			s.LastMessageAt = &t
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
