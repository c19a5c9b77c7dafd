package server

import (
	"net/http"

	"github.com/touristquiz/api/internal/images"
)

const maxImageBytes = 10 << 20

type UploadImageResponse struct {
	URL string `json:"url"`
}

func handleUploadImage(store images.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file required")
			return
		}
		defer file.Close()

		url, err := store.Upload(header.Filename, file)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, UploadImageResponse{URL: url})
	}
}
