package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/touristquiz/api/internal/proximity"
)

// Document shapes stored as JSONB in per-model tables. Query-relevant fields
// (username, points, owner_uid, object_id, updated_at) are mirrored into
// plain columns.

type userDoc struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	PasswordHash    string `json:"passwordHash"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

type sessionDoc struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

type objectDoc struct {
	ID        string  `json:"id"`
	OwnerUID  string  `json:"ownerUid"`
	OwnerName string  `json:"ownerName,omitempty"`
	Name      string  `json:"name"`
	Details   string  `json:"details"`
	Type      string  `json:"type"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	CreatedAt string  `json:"createdAt"`
}

// questionDoc keeps the wire shape of the original records: three separate
// option fields, plus both the canonical correctIndex and the legacy
// free-text correctAnswer. normalize resolves them into one Question.
type questionDoc struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Option1       string         `json:"option1"`
	Option2       string         `json:"option2"`
	Option3       string         `json:"option3"`
	CorrectIndex  *int           `json:"correctIndex,omitempty"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	CreatorUID    string         `json:"creatorUid"`
	Ratings       map[string]int `json:"ratings"`
	AverageRating float64        `json:"averageRating"`
	NumRatings    int            `json:"numRatings"`
}

// normalize converts a stored question, old or new shape, into the canonical
// form. When the canonical index is absent, the legacy free-text answer is
// matched against the options (trimmed, case-insensitive); if nothing
// resolves, CorrectIndex is -1 and no submission can score.
func (d questionDoc) normalize(objectID string) Question {
	options := []string{d.Option1, d.Option2, d.Option3}

	correct := -1
	if d.CorrectIndex != nil && *d.CorrectIndex >= 0 && *d.CorrectIndex < len(options) {
		correct = *d.CorrectIndex
	} else if ans := strings.TrimSpace(d.CorrectAnswer); ans != "" {
		for i, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), ans) {
				correct = i
				break
			}
		}
	}

	return Question{
		ID:            d.ID,
		ObjectID:      objectID,
		Text:          d.Text,
		Options:       options,
		CorrectIndex:  correct,
		CreatorUID:    d.CreatorUID,
		AverageRating: d.AverageRating,
		NumRatings:    d.NumRatings,
	}
}

type answeredDoc struct {
	UID        string `json:"uid"`
	ObjectID   string `json:"objectId"`
	QuestionID string `json:"questionId"`
	AnsweredAt string `json:"answeredAt"`
}

type locationDoc struct {
	UID             string  `json:"uid"`
	Name            string  `json:"name"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	ProfileImageURL string  `json:"profileImageUrl,omitempty"`
	UpdatedAt       string  `json:"updatedAt"`
}

// answeredKey is the idempotency anchor: one record per (user, object,
// question), never updated or deleted by normal flow.
func answeredKey(uid, objectID, questionID string) string {
	return uid + "|" + objectID + "_" + questionID
}

// DocStore implements Store over per-model tables with JSONB data columns.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Identity

func (s *DocStore) CreateUser(ctx context.Context, username, passwordHash, profileImageURL string) (string, error) {
	u := userDoc{
		ID:              newID(),
		Username:        username,
		PasswordHash:    passwordHash,
		ProfileImageURL: profileImageURL,
		CreatedAt:       nowUTC(),
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, points, data) VALUES (?, ?, 0, jsonb(?))`,
		u.ID, u.Username, string(data),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return "", ErrConflict
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *DocStore) UserCredentials(ctx context.Context, username string) (string, string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM users WHERE username = ?`, username,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	var u userDoc
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return "", "", err
	}
	return u.ID, u.PasswordHash, nil
}

func (s *DocStore) CreateSession(ctx context.Context, uid string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, uid,
	).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	token := newID()
	data, err := json.Marshal(sessionDoc{UID: uid, Username: username})
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data) VALUES (?, jsonb(?))`,
		token, string(data),
	)
	return token, err
}

func (s *DocStore) SessionUser(ctx context.Context, token string) (sessionInfo, error) {
	var sessData string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM sessions WHERE id = ?`, token,
	).Scan(&sessData)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionInfo{}, ErrNotFound
	}
	if err != nil {
		return sessionInfo{}, err
	}
	var sd sessionDoc
	if err := json.Unmarshal([]byte(sessData), &sd); err != nil {
		return sessionInfo{}, err
	}

	var userData string
	err = s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM users WHERE id = ?`, sd.UID,
	).Scan(&userData)
	if errors.Is(err, sql.ErrNoRows) {
		return sessionInfo{}, ErrNotFound
	}
	if err != nil {
		return sessionInfo{}, err
	}
	var u userDoc
	if err := json.Unmarshal([]byte(userData), &u); err != nil {
		return sessionInfo{}, err
	}

	return sessionInfo{
		UID:             u.ID,
		Username:        u.Username,
		ProfileImageURL: u.ProfileImageURL,
	}, nil
}

func (s *DocStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, token)
	return err
}

// Objects and questions

func (s *DocStore) ListObjects(ctx context.Context) ([]TouristObject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT json(data) FROM objects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objects := []TouristObject{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var d objectDoc
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, err
		}
		objects = append(objects, TouristObject(d))
	}
	return objects, rows.Err()
}

func (s *DocStore) CreateObject(ctx context.Context, obj TouristObject, questions []NewQuestion) (TouristObject, error) {
	obj.ID = newID()
	obj.CreatedAt = nowUTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TouristObject{}, err
	}
	defer tx.Rollback()

	data, err := json.Marshal(objectDoc(obj))
	if err != nil {
		return TouristObject{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO objects (id, owner_uid, data) VALUES (?, ?, jsonb(?))`,
		obj.ID, obj.OwnerUID, string(data),
	)
	if err != nil {
		return TouristObject{}, err
	}

	for _, q := range questions {
		if _, err := insertQuestion(ctx, tx, obj.ID, obj.OwnerUID, q); err != nil {
			return TouristObject{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return TouristObject{}, err
	}
	return obj, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestion(ctx context.Context, db execer, objectID, creatorUID string, q NewQuestion) (string, error) {
	idx := q.CorrectIndex
	d := questionDoc{
		ID:            newID(),
		Text:          q.Text,
		Option1:       q.Options[0],
		Option2:       q.Options[1],
		Option3:       q.Options[2],
		CorrectIndex:  &idx,
		CorrectAnswer: strings.TrimSpace(q.Options[q.CorrectIndex]),
		CreatorUID:    creatorUID,
		Ratings:       map[string]int{},
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO questions (id, object_id, data) VALUES (?, ?, jsonb(?))`,
		d.ID, objectID, string(data),
	)
	return d.ID, err
}

func (s *DocStore) objectOwner(ctx context.Context, objectID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_uid FROM objects WHERE id = ?`, objectID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return owner, err
}

// deleteBatchSize bounds a single question-delete statement, mirroring
// provider limits on batch operation counts.
const deleteBatchSize = 400

func (s *DocStore) DeleteObject(ctx context.Context, objectID, requesterUID string) error {
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return err
	}
	if owner != requesterUID {
		return ErrForbidden
	}

	// Remove question sub-records first, in bounded batches, then the object
	// itself. A crash between batches leaves orphan-free partial deletes that
	// the next attempt finishes.
	for {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM questions WHERE object_id = ? LIMIT ?`,
			objectID, deleteBatchSize,
		)
		if err != nil {
			return err
		}
		var ids []any
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM questions WHERE id IN (%s)`, placeholders), ids...,
		); err != nil {
			return err
		}
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, objectID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocStore) ListQuestions(ctx context.Context, objectID string) ([]Question, error) {
	if _, err := s.objectOwner(ctx, objectID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM questions WHERE object_id = ? ORDER BY id`, objectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []Question{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var d questionDoc
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, err
		}
		questions = append(questions, d.normalize(objectID))
	}
	return questions, rows.Err()
}

func (s *DocStore) GetQuestion(ctx context.Context, objectID, questionID string) (Question, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM questions WHERE id = ? AND object_id = ?`,
		questionID, objectID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	if err != nil {
		return Question{}, err
	}
	var d questionDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return Question{}, err
	}
	return d.normalize(objectID), nil
}

func (s *DocStore) AddQuestion(ctx context.Context, objectID, creatorUID string, q NewQuestion) (Question, error) {
	owner, err := s.objectOwner(ctx, objectID)
	if err != nil {
		return Question{}, err
	}
	if owner != creatorUID {
		return Question{}, ErrForbidden
	}

	id, err := insertQuestion(ctx, s.db, objectID, creatorUID, q)
	if err != nil {
		return Question{}, err
	}

	// Reload through the normal read path so the caller sees the canonical shape.
	return s.GetQuestion(ctx, objectID, id)
}

// Answer ledger

// SubmitAnswer enforces at-most-one scored answer per (user, question). The
// answered-record insert, the correctness check, and the +5 increment run in
// one transaction. The INSERT OR IGNORE comes first: it is the transaction's
// initial statement, so the writer lock is taken before any read and
// concurrent same-key submissions serialize on it, the loser observing the
// committed record (RowsAffected 0) instead of a stale snapshot. An
// incorrect or unresolvable answer rolls the insert back.
func (s *DocStore) SubmitAnswer(ctx context.Context, objectID, questionID, uid string, selectedIndex int) (AnswerOutcome, error) {
	key := answeredKey(uid, objectID, questionID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	doc, err := json.Marshal(answeredDoc{
		UID:        uid,
		ObjectID:   objectID,
		QuestionID: questionID,
		AnsweredAt: nowUTC(),
	})
	if err != nil {
		return "", err
	}
	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO answered (id, uid, object_id, question_id, data)
		 VALUES (?, ?, ?, ?, jsonb(?))`,
		key, uid, objectID, questionID, string(doc),
	)
	if err != nil {
		return "", err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return AnswerAlreadyAnswered, nil
	}

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT json(data) FROM questions WHERE id = ? AND object_id = ?`,
		questionID, objectID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var d questionDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return "", err
	}

	q := d.normalize(objectID)
	if q.CorrectIndex < 0 || selectedIndex != q.CorrectIndex {
		// The rollback discards the answered record: the user may retry
		// until correct.
		return AnswerIncorrect, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET points = points + 5 WHERE id = ?`, uid,
	); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return AnswerCorrect, nil
}

func (s *DocStore) AnsweredQuestionIDs(ctx context.Context, uid, objectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id FROM answered WHERE uid = ? AND object_id = ? ORDER BY question_id`,
		uid, objectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Rating aggregator

// RateQuestion upserts the rater's rating and persists the recomputed
// average and count with it as one unit. Point awards are the caller's
// follow-up and deliberately not part of this transaction.
func (s *DocStore) RateQuestion(ctx context.Context, objectID, questionID, raterUID string, rating int) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT json(data) FROM questions WHERE id = ? AND object_id = ?`,
		questionID, objectID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var d questionDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return "", err
	}

	if d.Ratings == nil {
		d.Ratings = map[string]int{}
	}
	d.Ratings[raterUID] = rating

	sum := 0
	for _, v := range d.Ratings {
		sum += v
	}
	d.NumRatings = len(d.Ratings)
	d.AverageRating = float64(sum) / float64(d.NumRatings)

	updated, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE questions SET data = jsonb(?) WHERE id = ?`,
		string(updated), questionID,
	); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return d.CreatorUID, nil
}

// Scores

// AddPoints applies an additive increment; concurrent awards from unrelated
// sources compose without lost updates.
func (s *DocStore) AddPoints(ctx context.Context, uid string, delta int64) (string, int64, error) {
	var username string
	var total int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET points = points + ? WHERE id = ? RETURNING username, points`,
		delta, uid,
	).Scan(&username, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return username, total, err
}

func (s *DocStore) UserScore(ctx context.Context, uid string) (string, int64, error) {
	var username string
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT username, points FROM users WHERE id = ?`, uid,
	).Scan(&username, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return username, total, err
}

func (s *DocStore) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, points FROM users ORDER BY points DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []ScoreEntry{}
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.Username, &e.Points); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Location store (proximity.Store)

func (s *DocStore) LiveUsers(ctx context.Context, window time.Duration) ([]proximity.Target, error) {
	cutoff := time.Now().UTC().Add(-window).Format("2006-01-02T15:04:05.000Z")
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM user_locations WHERE updated_at >= ?`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []proximity.Target
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var d locationDoc
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, err
		}
		targets = append(targets, proximity.Target{
			ID:   d.UID,
			Name: d.Name,
			Lat:  d.Lat,
			Lng:  d.Lng,
		})
	}
	return targets, rows.Err()
}

func (s *DocStore) Objects(ctx context.Context) ([]proximity.Target, error) {
	objects, err := s.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]proximity.Target, 0, len(objects))
	for _, o := range objects {
		targets = append(targets, proximity.Target{
			ID:   o.ID,
			Name: o.Name,
			Lat:  o.Lat,
			Lng:  o.Lng,
		})
	}
	return targets, nil
}

func (s *DocStore) PublishLocation(ctx context.Context, p proximity.Presence, fix proximity.Fix) error {
	now := nowUTC()
	data, err := json.Marshal(locationDoc{
		UID:             p.UID,
		Name:            p.Name,
		Lat:             fix.Lat,
		Lng:             fix.Lng,
		ProfileImageURL: p.ProfileImageURL,
		UpdatedAt:       now,
	})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_locations (uid, updated_at, data) VALUES (?, ?, jsonb(?))`,
		p.UID, now, string(data),
	)
	return err
}

func (s *DocStore) RemoveLocation(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_locations WHERE uid = ?`, uid)
	return err
}
