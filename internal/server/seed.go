package server

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// SeedDemo creates a demo user with one tourist object and question if the
// database is empty. Idempotent: does nothing once any user exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, store Store) error {
	scores, err := store.TopScores(ctx, 1)
	if err != nil {
		return err
	}
	if len(scores) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	uid, err := store.CreateUser(ctx, "demo", string(hash), "")
	if err != nil {
		return err
	}

	_, err = store.CreateObject(ctx, TouristObject{
		OwnerUID: uid,
		Name:     "Eiffel Tower",
		Details:  "Wrought-iron lattice tower on the Champ de Mars.",
		Type:     "attraction",
		Lat:      48.8584,
		Lng:      2.2945,
	}, []NewQuestion{{
		Text:         "In which city does this tower stand?",
		Options:      []string{"Paris", "Berlin", "Madrid"},
		CorrectIndex: 0,
	}})
	if err != nil {
		return err
	}

	logger.Info("demo user and object seeded", "username", "demo")
	return nil
}
