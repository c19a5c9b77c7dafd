package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/touristquiz/api/internal/proximity"
)

type LocationRequest struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	PermissionDenied bool    `json:"permissionDenied"`
}

func validLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// handleLocation ingests a single location fix. A fix with permissionDenied
// set reports that the client lost location access; tracking for that user
// stops and its published location is withdrawn.
func handleLocation(tracker *proximity.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.PermissionDenied {
			tracker.Fail(sess.UID, proximity.ErrPermissionDenied)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !validLatLng(req.Lat, req.Lng) {
			writeError(w, http.StatusBadRequest, "lat/lng out of range")
			return
		}

		tracker.Deliver(proximity.Presence{
			UID:             sess.UID,
			Name:            sess.Username,
			ProfileImageURL: sess.ProfileImageURL,
		}, proximity.Fix{Lat: req.Lat, Lng: req.Lng, At: time.Now()})

		w.WriteHeader(http.StatusAccepted)
	}
}

// handleLocationWS streams location fixes over a websocket. Each message is
// a LocationRequest; the stream ends when the client disconnects or reports
// lost permission.
func handleLocationWS(tracker *proximity.Tracker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 12*time.Hour)
		defer cancel()

		self := proximity.Presence{
			UID:             sess.UID,
			Name:            sess.Username,
			ProfileImageURL: sess.ProfileImageURL,
		}

		for {
			var req LocationRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				logger.Debug("location stream ended", "uid", sess.UID, "error", err)
				return
			}

			if req.PermissionDenied {
				tracker.Fail(sess.UID, proximity.ErrPermissionDenied)
				conn.Close(websocket.StatusNormalClosure, "location permission revoked")
				return
			}

			if !validLatLng(req.Lat, req.Lng) {
				continue
			}

			tracker.Deliver(self, proximity.Fix{Lat: req.Lat, Lng: req.Lng, At: time.Now()})
		}
	}
}
