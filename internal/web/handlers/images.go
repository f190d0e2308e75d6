package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// ImageResolver maps a storage locator to a file on disk.
type ImageResolver interface {
	Path(locator string) (string, error)
}

// ImagesHandler serves enrolled face images by their storage locator
type ImagesHandler struct {
	store ImageResolver
}

// NewImagesHandler creates a new images handler
func NewImagesHandler(store ImageResolver) *ImagesHandler {
	return &ImagesHandler{store: store}
}

// Get serves the image at the locator captured by the route wildcard
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	locator := chi.URLParam(r, "*")
	if locator == "" {
		respondError(w, http.StatusBadRequest, "image locator is required")
		return
	}

	path, err := h.store.Path(locator)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image locator")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "image not found")
			return
		}
		log.Errorf("images: stat %s: %v", sanitizeForLog(locator), err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if info.IsDir() {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
