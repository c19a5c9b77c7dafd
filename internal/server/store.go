package server

import (
	"context"
	"errors"
	"time"

	"github.com/touristquiz/api/internal/proximity"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requester is not allowed to touch the
	// record, e.g. deleting an object they do not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
)

type sessionInfo struct {
	UID             string
	Username        string
	ProfileImageURL string
}

// Tourist object types accepted on creation.
var objectTypes = map[string]bool{
	"attraction": true,
	"cultural":   true,
	"historical": true,
}

type TouristObject struct {
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

// Question is the canonical in-memory shape. The stored record may be a
// legacy one (free-text correct answer, no index); the store normalizes both
// shapes into this one, with CorrectIndex -1 when no index resolves.
type Question struct {
	ID            string   `json:"id"`
	ObjectID      string   `json:"objectId"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectIndex  int      `json:"-"`
	CreatorUID    string   `json:"creatorUid"`
	AverageRating float64  `json:"averageRating"`
	NumRatings    int      `json:"numRatings"`
}

// NewQuestion is the creation payload: exactly 3 options, correct index 0..2.
type NewQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type AnswerOutcome string

const (
	AnswerCorrect         AnswerOutcome = "correct"
	AnswerIncorrect       AnswerOutcome = "incorrect"
	AnswerAlreadyAnswered AnswerOutcome = "alreadyAnswered"
)

type ScoreEntry struct {
	Username string `json:"username"`
	Points   int64  `json:"points"`
}

// Store is the directory-store surface the handlers work against.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash, profileImageURL string) (uid string, err error)
	UserCredentials(ctx context.Context, username string) (uid, passwordHash string, err error)
	CreateSession(ctx context.Context, uid string) (token string, err error)
	SessionUser(ctx context.Context, token string) (sessionInfo, error)
	DeleteSession(ctx context.Context, token string) error

	ListObjects(ctx context.Context) ([]TouristObject, error)
	CreateObject(ctx context.Context, obj TouristObject, questions []NewQuestion) (TouristObject, error)
	DeleteObject(ctx context.Context, objectID, requesterUID string) error
	ListQuestions(ctx context.Context, objectID string) ([]Question, error)
	GetQuestion(ctx context.Context, objectID, questionID string) (Question, error)
	AddQuestion(ctx context.Context, objectID, creatorUID string, q NewQuestion) (Question, error)

	SubmitAnswer(ctx context.Context, objectID, questionID, uid string, selectedIndex int) (AnswerOutcome, error)
	AnsweredQuestionIDs(ctx context.Context, uid, objectID string) ([]string, error)
	RateQuestion(ctx context.Context, objectID, questionID, raterUID string, rating int) (creatorUID string, err error)

	AddPoints(ctx context.Context, uid string, delta int64) (username string, total int64, err error)
	UserScore(ctx context.Context, uid string) (username string, total int64, err error)
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)

	// Location store surface, shared with the proximity engine.
	LiveUsers(ctx context.Context, window time.Duration) ([]proximity.Target, error)
	Objects(ctx context.Context) ([]proximity.Target, error)
	PublishLocation(ctx context.Context, p proximity.Presence, fix proximity.Fix) error
	RemoveLocation(ctx context.Context, uid string) error
}
