package server

import (
	"context"
	"log/slog"

	"github.com/touristquiz/api/internal/metrics"
	"github.com/touristquiz/api/internal/rank"
)

// Ranker is the leaderboard read-model mirror. A nil Ranker disables the
// mirror; reads then fall back to the store.
type Ranker interface {
	Update(ctx context.Context, username string, points int64) error
	Top(ctx context.Context, limit int) ([]rank.Entry, error)
}

// scoreKeeper routes point awards: the store increment is the source of
// truth, the Redis mirror and the SSE broadcast are best-effort follow-ups.
type scoreKeeper struct {
	store  Store
	ranker Ranker
	broker *Broker
	logger *slog.Logger
}

// award applies an additive increment to the user's points and refreshes the
// read models. Failures to mirror or broadcast never undo the increment.
func (k *scoreKeeper) award(ctx context.Context, uid string, delta int64, reason string) {
	username, total, err := k.store.AddPoints(ctx, uid, delta)
	if err != nil {
		k.logger.Warn("awarding points failed", "uid", uid, "delta", delta, "reason", reason, "error", err)
		return
	}
	metrics.PointsAwarded.WithLabelValues(reason).Add(float64(delta))
	k.mirror(ctx, username, total)
}

// refresh re-reads the user's total and pushes it to the read models. Used
// when the increment itself happened elsewhere, e.g. inside the answer
// ledger's transaction.
func (k *scoreKeeper) refresh(ctx context.Context, uid string) {
	username, total, err := k.store.UserScore(ctx, uid)
	if err != nil {
		k.logger.Warn("reading score failed", "uid", uid, "error", err)
		return
	}
	k.mirror(ctx, username, total)
}

func (k *scoreKeeper) mirror(ctx context.Context, username string, total int64) {
	if k.ranker != nil {
		if err := k.ranker.Update(ctx, username, total); err != nil {
			k.logger.Warn("leaderboard mirror update failed", "username", username, "error", err)
		}
	}
	k.broker.Broadcast(Event{Type: "leaderboard_changed"})
}

// SyncLeaderboard rebuilds the redis mirror from the store's top scores, so
// a fresh or flushed redis serves the same projection as the source of
// truth. Only the served window needs mirroring; later awards keep adding
// members.
func SyncLeaderboard(ctx context.Context, store Store, ranker Ranker, limit int) error {
	scores, err := store.TopScores(ctx, limit)
	if err != nil {
		return err
	}
	for _, s := range scores {
		if err := ranker.Update(ctx, s.Username, s.Points); err != nil {
			return err
		}
	}
	return nil
}
