// Package rank maintains the leaderboard read model in a Redis sorted set.
// The document store stays the source of truth for point totals; the sorted
// set is a mirror seeded at registration, updated on every award, and
// rebuilt from the store at startup.
package rank

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:points"

// Entry is one leaderboard row.
type Entry struct {
	Username string `json:"username"`
	Points   int64  `json:"points"`
	Rank     int64  `json:"rank"`
}

type Ranker struct {
	client *redis.Client
}

func New(client *redis.Client) *Ranker {
	return &Ranker{client: client}
}

// Update sets the user's point total in the sorted set. ZADD is a plain
// overwrite with the caller's total, so concurrent updates converge on the
// latest value read from the store.
func (r *Ranker) Update(ctx context.Context, username string, points int64) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(points),
		Member: username,
	}).Err()
}

// Top returns the highest-scoring users, best first, with 1-based ranks.
func (r *Ranker) Top(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	zs, err := r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(zs))
	for i, z := range zs {
		name, _ := z.Member.(string)
		entries = append(entries, Entry{
			Username: name,
			Points:   int64(z.Score),
			Rank:     int64(i + 1),
		})
	}
	return entries, nil
}

// Remove deletes a user from the leaderboard mirror.
func (r *Ranker) Remove(ctx context.Context, username string) error {
	return r.client.ZRem(ctx, leaderboardKey, username).Err()
}
