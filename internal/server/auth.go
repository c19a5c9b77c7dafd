package server

import (
	"errors"
	"net/http"
	"strings"
)

var errNoSession = errors.New("no valid session")

func sessionFromRequest(r *http.Request, store Store) (sessionInfo, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		// SSE and websocket clients cannot set headers; accept ?token=.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return sessionInfo{}, errNoSession
	}
	sess, err := store.SessionUser(r.Context(), token)
	if errors.Is(err, ErrNotFound) {
		return sessionInfo{}, errNoSession
	}
	return sess, err
}

func sessionToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return r.URL.Query().Get("token")
	}
	return token
}
