package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/touristquiz/api/internal/images"
	"github.com/touristquiz/api/internal/proximity"
	"github.com/touristquiz/api/internal/rank"
)

type Server struct {
	srv     *http.Server
	logger  *slog.Logger
	tracker *proximity.Tracker
}

// New wires the document store, the proximity tracker, the SSE broker and
// the leaderboard mirror into an HTTP server. rdb and media may be nil; the
// corresponding features are then disabled.
func New(addr string, logger *slog.Logger, db *sql.DB, rdb *redis.Client,
	media *images.LocalStore, leaderboardLimit int) *Server {

	store := NewDocStore(db)
	broker := NewBroker()
	tracker := proximity.NewTracker(store, broker, logger)

	var ranker Ranker
	if rdb != nil {
		ranker = rank.New(rdb)
	}
	keeper := &scoreKeeper{store: store, ranker: ranker, broker: broker, logger: logger}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, store, tracker, broker, keeper, ranker, media, db, rdb, leaderboardLimit)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:  logger,
		tracker: tracker,
	}
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.tracker.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
