package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CreateObjectRequest struct {
	Name      string        `json:"name"`
	Details   string        `json:"details"`
	Type      string        `json:"type"`
	ImageURL  string        `json:"imageUrl,omitempty"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	Questions []NewQuestion `json:"questions,omitempty"`
}

func validateQuestion(q NewQuestion) string {
	if strings.TrimSpace(q.Text) == "" {
		return "question text is required"
	}
	if len(q.Options) != 3 {
		return "a question needs exactly 3 options"
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return "question options must not be empty"
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex > 2 {
		return "correctIndex must be 0, 1 or 2"
	}
	return ""
}

func handleListObjects(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objects, err := store.ListObjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, objects)
	}
}

func handleCreateObject(store Store, keeper *scoreKeeper, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		var req CreateObjectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if !objectTypes[req.Type] {
			writeError(w, http.StatusBadRequest, "type must be attraction, cultural or historical")
			return
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			writeError(w, http.StatusBadRequest, "invalid coordinates")
			return
		}
		for _, q := range req.Questions {
			if msg := validateQuestion(q); msg != "" {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
		}

		obj, err := store.CreateObject(r.Context(), TouristObject{
			OwnerUID:  sess.UID,
			OwnerName: sess.Username,
			Name:      req.Name,
			Details:   req.Details,
			Type:      req.Type,
			ImageURL:  req.ImageURL,
			Lat:       req.Lat,
			Lng:       req.Lng,
		}, req.Questions)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Creator reward, independent of question creation.
		keeper.award(r.Context(), sess.UID, 20, "object_created")
		broker.Broadcast(Event{Type: "objects_changed", ObjectID: obj.ID})

		writeJSON(w, http.StatusCreated, obj)
	}
}

func handleDeleteObject(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		objectID := chi.URLParam(r, "objectID")

		err := store.DeleteObject(r.Context(), objectID, sess.UID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		if errors.Is(err, ErrForbidden) {
			writeError(w, http.StatusForbidden, "only the owner can delete an object")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Broadcast(Event{Type: "objects_changed", ObjectID: objectID})
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListQuestions(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := store.ListQuestions(r.Context(), chi.URLParam(r, "objectID"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

func handleAddQuestion(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		objectID := chi.URLParam(r, "objectID")

		var req NewQuestion
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := validateQuestion(req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		q, err := store.AddQuestion(r.Context(), objectID, sess.UID, req)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		if errors.Is(err, ErrForbidden) {
			writeError(w, http.StatusForbidden, "only the owner can add questions")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, q)
	}
}

type AnsweredResponse struct {
	QuestionIDs []string `json:"questionIds"`
}

// handleAnswered returns the ids of the questions the session user has
// already been scored for on this object.
func handleAnswered(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		ids, err := store.AnsweredQuestionIDs(r.Context(), sess.UID, chi.URLParam(r, "objectID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, AnsweredResponse{QuestionIDs: ids})
	}
}
