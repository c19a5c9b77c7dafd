package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/touristquiz/api/internal/proximity"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// ProfileImageURL is an optional image-store URL (POST /api/images);
	// it is republished with the user's location while they are online.
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UID      string `json:"uid"`
	Username string `json:"username"`
}

func handleRegister(store Store, keeper *scoreKeeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || len(req.Password) < 6 {
			writeError(w, http.StatusBadRequest, "username and a password of at least 6 characters are required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		uid, err := store.CreateUser(r.Context(), req.Username, string(hash), req.ProfileImageURL)
		if errors.Is(err, ErrConflict) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Seed the leaderboard mirror so the new user ranks at zero points.
		keeper.refresh(r.Context(), uid)

		writeJSON(w, http.StatusCreated, RegisterResponse{ID: uid, Username: req.Username})
	}
}

func handleLogin(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		uid, hash, err := store.UserCredentials(r.Context(), req.Username)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := store.CreateSession(r.Context(), uid)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token:    token,
			UID:      uid,
			Username: req.Username,
		})
	}
}

// handleLogout ends the session: the token is invalidated and the proximity
// monitor is stopped, which removes the published location.
func handleLogout(store Store, tracker *proximity.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		if err := store.DeleteSession(r.Context(), sessionToken(r)); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		tracker.Stop(sess.UID)

		w.WriteHeader(http.StatusNoContent)
	}
}
