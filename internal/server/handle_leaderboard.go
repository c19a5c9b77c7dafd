package server

import (
	"log/slog"
	"net/http"
)

type LeaderboardEntry struct {
	Username string `json:"username"`
	Points   int64  `json:"points"`
	Rank     int    `json:"rank"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
}

func handleLeaderboard(store Store, ranker Ranker, logger *slog.Logger, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ranker != nil {
			entries, err := ranker.Top(r.Context(), limit)
			if err == nil {
				resp := LeaderboardResponse{Entries: make([]LeaderboardEntry, 0, len(entries))}
				for _, e := range entries {
					resp.Entries = append(resp.Entries, LeaderboardEntry{
						Username: e.Username,
						Points:   e.Points,
						Rank:     int(e.Rank),
					})
				}
				writeJSON(w, http.StatusOK, resp)
				return
			}
			logger.Warn("leaderboard read from redis failed, falling back to db", "error", err)
		}

		scores, err := store.TopScores(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp := LeaderboardResponse{Entries: make([]LeaderboardEntry, 0, len(scores))}
		for i, s := range scores {
			resp.Entries = append(resp.Entries, LeaderboardEntry{
				Username: s.Username,
				Points:   s.Points,
				Rank:     i + 1,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
