package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/touristquiz/api/internal/metrics"
)

type AnswerRequest struct {
	SelectedIndex *int `json:"selectedIndex"`
}

type AnswerResponse struct {
	Outcome       AnswerOutcome `json:"outcome"`
	PointsAwarded int           `json:"pointsAwarded"`
}

func handleSubmitAnswer(store Store, keeper *scoreKeeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		objectID := chi.URLParam(r, "objectID")
		questionID := chi.URLParam(r, "questionID")

		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SelectedIndex == nil || *req.SelectedIndex < 0 || *req.SelectedIndex > 2 {
			writeError(w, http.StatusBadRequest, "selectedIndex must be 0, 1 or 2")
			return
		}

		outcome, err := store.SubmitAnswer(r.Context(), objectID, questionID, sess.UID, *req.SelectedIndex)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			// A store failure is not an incorrect answer.
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		metrics.AnswersTotal.WithLabelValues(string(outcome)).Inc()

		resp := AnswerResponse{Outcome: outcome}
		if outcome == AnswerCorrect {
			// The +5 was applied inside the ledger transaction; push the new
			// total to the leaderboard read models.
			resp.PointsAwarded = 5
			metrics.PointsAwarded.WithLabelValues("correct_answer").Add(5)
			keeper.refresh(r.Context(), sess.UID)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
