package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/touristquiz/api/internal/proximity"
)

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRouter wires the full API surface against a file-backed store, no
// redis and no media store.
func testRouter(t *testing.T) (*chi.Mux, *DocStore) {
	t.Helper()
	store := setupTestStore(t)

	logger := testDiscardLogger()
	broker := NewBroker()
	tracker := proximity.NewTracker(store, broker, logger)
	t.Cleanup(tracker.Close)
	keeper := &scoreKeeper{store: store, ranker: nil, broker: broker, logger: logger}

	r := chi.NewRouter()
	addRoutes(r, logger, store, tracker, broker, keeper, nil, nil, nil, nil, 50)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// registerAndLogin creates a user and returns its uid and session token.
func registerAndLogin(t *testing.T, r http.Handler, username string) (string, string) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{Username: username, Password: "secret1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/login", "", LoginRequest{Username: username, Password: "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, w.Code, w.Body.String())
	}
	var resp LoginResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp.UID, resp.Token
}

func createObjectReq() CreateObjectRequest {
	return CreateObjectRequest{
		Name:    "Old Bridge",
		Details: "A stone bridge.",
		Type:    "historical",
		Lat:     43.337,
		Lng:     17.815,
		Questions: []NewQuestion{{
			Text:         "Which river does the bridge cross?",
			Options:      []string{"Neretva", "Drina", "Sava"},
			CorrectIndex: 0,
		}},
	}
}

func TestRegisterValidation(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Password: "short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{Username: "  ", Password: "secret1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank username: expected 400, got %d", w.Code)
	}
}

func TestRegisterStoresProfileImage(t *testing.T) {
	r, store := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{
		Username:        "alice",
		Password:        "secret1",
		ProfileImageURL: "http://media.test/images/alice.png",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	var resp LoginResponse
	json.NewDecoder(w.Body).Decode(&resp)

	sess, err := store.SessionUser(t.Context(), resp.Token)
	if err != nil {
		t.Fatalf("session user: %v", err)
	}
	if sess.ProfileImageURL != "http://media.test/images/alice.png" {
		t.Errorf("session image %q, want the registered one", sess.ProfileImageURL)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r, _ := testRouter(t)
	registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Password: "secret1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := testRouter(t)
	registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "wrong-1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/objects", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/objects", "bogus", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", w.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	r, _ := testRouter(t)
	_, token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/logout", token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/objects", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", w.Code)
	}
}

func TestCreateObjectAwardsPoints(t *testing.T) {
	r, store := testRouter(t)
	uid, token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/objects", token, createObjectReq())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)
	if obj.OwnerUID != uid || obj.ID == "" {
		t.Errorf("unexpected object %+v", obj)
	}

	_, total, err := store.UserScore(t.Context(), uid)
	if err != nil {
		t.Fatalf("user score: %v", err)
	}
	if total != 20 {
		t.Errorf("expected 20 points for creating an object, got %d", total)
	}
}

func TestCreateObjectRejectsBadType(t *testing.T) {
	r, _ := testRouter(t)
	_, token := registerAndLogin(t, r, "alice")

	req := createObjectReq()
	req.Type = "castle"
	w := doJSON(t, r, http.MethodPost, "/api/objects", token, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateObjectRejectsBadQuestion(t *testing.T) {
	r, _ := testRouter(t)
	_, token := registerAndLogin(t, r, "alice")

	req := createObjectReq()
	req.Questions[0].Options = []string{"Neretva", "Drina"}
	w := doJSON(t, r, http.MethodPost, "/api/objects", token, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("two options: expected 400, got %d", w.Code)
	}

	req = createObjectReq()
	req.Questions[0].CorrectIndex = 3
	w = doJSON(t, r, http.MethodPost, "/api/objects", token, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("index out of range: expected 400, got %d", w.Code)
	}
}

func TestDeleteObjectNonOwnerForbidden(t *testing.T) {
	r, _ := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")
	_, otherToken := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)

	w = doJSON(t, r, http.MethodDelete, "/api/objects/"+obj.ID, otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/objects/"+obj.ID, ownerToken, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for owner, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnswerFlow(t *testing.T) {
	r, store := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")
	playerUID, playerToken := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)

	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/questions", playerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list questions: expected 200, got %d", w.Code)
	}
	var questions []Question
	json.NewDecoder(w.Body).Decode(&questions)
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	qid := questions[0].ID
	answerPath := fmt.Sprintf("/api/objects/%s/questions/%s/answer", obj.ID, qid)

	wrong := 1
	w = doJSON(t, r, http.MethodPost, answerPath, playerToken, AnswerRequest{SelectedIndex: &wrong})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp AnswerResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Outcome != AnswerIncorrect || resp.PointsAwarded != 0 {
		t.Errorf("wrong answer: unexpected %+v", resp)
	}

	right := 0
	w = doJSON(t, r, http.MethodPost, answerPath, playerToken, AnswerRequest{SelectedIndex: &right})
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Outcome != AnswerCorrect || resp.PointsAwarded != 5 {
		t.Errorf("correct answer: unexpected %+v", resp)
	}

	w = doJSON(t, r, http.MethodPost, answerPath, playerToken, AnswerRequest{SelectedIndex: &right})
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Outcome != AnswerAlreadyAnswered || resp.PointsAwarded != 0 {
		t.Errorf("repeat answer: unexpected %+v", resp)
	}

	_, total, err := store.UserScore(t.Context(), playerUID)
	if err != nil {
		t.Fatalf("user score: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 points total, got %d", total)
	}

	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/answered", playerToken, nil)
	var answered AnsweredResponse
	json.NewDecoder(w.Body).Decode(&answered)
	if len(answered.QuestionIDs) != 1 || answered.QuestionIDs[0] != qid {
		t.Errorf("unexpected answered set %+v", answered)
	}
}

func TestAnswerValidation(t *testing.T) {
	r, _ := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)
	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/questions", ownerToken, nil)
	var questions []Question
	json.NewDecoder(w.Body).Decode(&questions)
	answerPath := fmt.Sprintf("/api/objects/%s/questions/%s/answer", obj.ID, questions[0].ID)

	w = doJSON(t, r, http.MethodPost, answerPath, ownerToken, AnswerRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing index: expected 400, got %d", w.Code)
	}

	out := 3
	w = doJSON(t, r, http.MethodPost, answerPath, ownerToken, AnswerRequest{SelectedIndex: &out})
	if w.Code != http.StatusBadRequest {
		t.Errorf("index out of range: expected 400, got %d", w.Code)
	}

	zero := 0
	missing := fmt.Sprintf("/api/objects/%s/questions/missing/answer", obj.ID)
	w = doJSON(t, r, http.MethodPost, missing, ownerToken, AnswerRequest{SelectedIndex: &zero})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown question: expected 404, got %d", w.Code)
	}
}

func TestRatingFlow(t *testing.T) {
	r, store := testRouter(t)
	ownerUID, ownerToken := registerAndLogin(t, r, "alice")
	raterUID, raterToken := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)
	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/questions", raterToken, nil)
	var questions []Question
	json.NewDecoder(w.Body).Decode(&questions)
	ratingPath := fmt.Sprintf("/api/objects/%s/questions/%s/rating", obj.ID, questions[0].ID)

	four := 4
	w = doJSON(t, r, http.MethodPost, ratingPath, raterToken, RateQuestionRequest{Rating: &four})
	if w.Code != http.StatusOK {
		t.Fatalf("rate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var q Question
	json.NewDecoder(w.Body).Decode(&q)
	if q.NumRatings != 1 || q.AverageRating != 4.0 {
		t.Errorf("unexpected aggregates %+v", q)
	}

	// Creator gets the rating value, the rater gets 1.
	_, ownerTotal, _ := store.UserScore(t.Context(), ownerUID)
	if ownerTotal != 20+4 {
		t.Errorf("expected creator at 24 points, got %d", ownerTotal)
	}
	_, raterTotal, _ := store.UserScore(t.Context(), raterUID)
	if raterTotal != 1 {
		t.Errorf("expected rater at 1 point, got %d", raterTotal)
	}
}

func TestRatingOwnQuestionForbidden(t *testing.T) {
	r, _ := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)
	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/questions", ownerToken, nil)
	var questions []Question
	json.NewDecoder(w.Body).Decode(&questions)
	ratingPath := fmt.Sprintf("/api/objects/%s/questions/%s/rating", obj.ID, questions[0].ID)

	five := 5
	w = doJSON(t, r, http.MethodPost, ratingPath, ownerToken, RateQuestionRequest{Rating: &five})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 rating own question, got %d", w.Code)
	}
}

func TestRatingValidation(t *testing.T) {
	r, _ := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")
	_, raterToken := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)
	w = doJSON(t, r, http.MethodGet, "/api/objects/"+obj.ID+"/questions", raterToken, nil)
	var questions []Question
	json.NewDecoder(w.Body).Decode(&questions)
	ratingPath := fmt.Sprintf("/api/objects/%s/questions/%s/rating", obj.ID, questions[0].ID)

	for _, bad := range []int{0, 6, -1} {
		w = doJSON(t, r, http.MethodPost, ratingPath, raterToken, RateQuestionRequest{Rating: &bad})
		if w.Code != http.StatusBadRequest {
			t.Errorf("rating %d: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestAddQuestionNonOwnerForbidden(t *testing.T) {
	r, _ := testRouter(t)
	_, ownerToken := registerAndLogin(t, r, "alice")
	_, otherToken := registerAndLogin(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/objects", ownerToken, createObjectReq())
	var obj TouristObject
	json.NewDecoder(w.Body).Decode(&obj)

	q := NewQuestion{Text: "Built in which year?", Options: []string{"1566", "1466", "1666"}, CorrectIndex: 0}
	w = doJSON(t, r, http.MethodPost, "/api/objects/"+obj.ID+"/questions", otherToken, q)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/objects/"+obj.ID+"/questions", ownerToken, q)
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 for owner, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	r, store := testRouter(t)
	aliceUID, token := registerAndLogin(t, r, "alice")
	bobUID, _ := registerAndLogin(t, r, "bob")
	registerAndLogin(t, r, "carol")

	if _, _, err := store.AddPoints(t.Context(), aliceUID, 25); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if _, _, err := store.AddPoints(t.Context(), bobUID, 40); err != nil {
		t.Fatalf("add points: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/leaderboard", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp LeaderboardResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Username != "bob" || resp.Entries[0].Rank != 1 {
		t.Errorf("expected bob first, got %+v", resp.Entries[0])
	}
	if resp.Entries[1].Username != "alice" || resp.Entries[1].Rank != 2 {
		t.Errorf("expected alice second, got %+v", resp.Entries[1])
	}
}

func TestLocationPermissionDenied(t *testing.T) {
	r, store := testRouter(t)
	uid, token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/location", token, LocationRequest{Lat: 43.3, Lng: 17.8})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/location", token, LocationRequest{PermissionDenied: true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	// The monitor exits and withdraws the published location.
	deadline := time.Now().Add(2 * time.Second)
	for {
		targets, err := store.LiveUsers(t.Context(), proximity.OnlineWindow)
		if err != nil {
			t.Fatalf("live users: %v", err)
		}
		if !containsTarget(targets, uid) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("location still published after permission denied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func containsTarget(targets []proximity.Target, id string) bool {
	for _, target := range targets {
		if target.ID == id {
			return true
		}
	}
	return false
}

func TestLocationRejectsBadCoordinates(t *testing.T) {
	r, _ := testRouter(t)
	_, token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/location", token, LocationRequest{Lat: 91, Lng: 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
