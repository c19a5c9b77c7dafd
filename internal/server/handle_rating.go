package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/touristquiz/api/internal/metrics"
)

type RateQuestionRequest struct {
	Rating *int `json:"rating"`
}

func handleRateQuestion(store Store, keeper *scoreKeeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		objectID := chi.URLParam(r, "objectID")
		questionID := chi.URLParam(r, "questionID")

		var req RateQuestionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Rating == nil || *req.Rating < 1 || *req.Rating > 5 {
			writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
			return
		}

		q, err := store.GetQuestion(r.Context(), objectID, questionID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if q.CreatorUID == sess.UID {
			writeError(w, http.StatusForbidden, "cannot rate your own question")
			return
		}

		creatorUID, err := store.RateQuestion(r.Context(), objectID, questionID, sess.UID, *req.Rating)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		metrics.RatingsTotal.Inc()

		// Reward points are best effort: the rating itself already committed.
		keeper.award(r.Context(), creatorUID, int64(*req.Rating), "rating_received")
		keeper.award(r.Context(), sess.UID, 1, "rating_given")

		updated, err := store.GetQuestion(r.Context(), objectID, questionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
