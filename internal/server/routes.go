package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"

	"github.com/touristquiz/api/internal/images"
	"github.com/touristquiz/api/internal/metrics"
	"github.com/touristquiz/api/internal/proximity"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, tracker *proximity.Tracker,
	broker *Broker, keeper *scoreKeeper, ranker Ranker, media *images.LocalStore,
	db *sql.DB, rdb *redis.Client, leaderboardLimit int) {

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("TouristQuiz API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if media != nil {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(media.Dir())))
		r.Handle("/media/*", fs)
	}

	r.Post("/api/register", handleRegister(store, keeper))
	r.Post("/api/login", handleLogin(store))

	// Session routes — sessionInfo injected by authMiddleware.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(store))

		r.Post("/api/logout", handleLogout(store, tracker))

		r.Get("/api/objects", handleListObjects(store))
		r.Post("/api/objects", handleCreateObject(store, keeper, broker))
		r.Delete("/api/objects/{objectID}", handleDeleteObject(store, broker))
		r.Get("/api/objects/{objectID}/questions", handleListQuestions(store))
		r.Post("/api/objects/{objectID}/questions", handleAddQuestion(store))
		r.Post("/api/objects/{objectID}/questions/{questionID}/answer", handleSubmitAnswer(store, keeper))
		r.Post("/api/objects/{objectID}/questions/{questionID}/rating", handleRateQuestion(store, keeper))
		r.Get("/api/objects/{objectID}/answered", handleAnswered(store))

		r.Get("/api/leaderboard", handleLeaderboard(store, ranker, logger, leaderboardLimit))

		r.Post("/api/location", handleLocation(tracker))
		r.Get("/api/location/ws", handleLocationWS(tracker, logger))
		r.Get("/api/events", handleEvents(broker))

		if media != nil {
			r.Post("/api/images", handleUploadImage(media))
		}
	})
}
