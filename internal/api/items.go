package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/ecoleta/internal/imaging"
	"github.com/erazemk/ecoleta/internal/model"
	"github.com/erazemk/ecoleta/internal/store"
)

// ItemsHandler serves the item catalog and item icons.
type ItemsHandler struct {
	DB        *sql.DB
	PublicURL string
}

// List handles GET /items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	for i := range items {
		h.setImageURL(&items[i])
	}
	jsonResponse(w, http.StatusOK, items)
}

// setImageURL points an item at its uploaded icon if it has one, otherwise at
// the embedded default.
func (h *ItemsHandler) setImageURL(item *model.Item) {
	if item.HasIcon {
		item.ImageURL = fmt.Sprintf("%s/items/%d/image", h.PublicURL, item.ID)
		return
	}
	item.ImageURL = h.PublicURL + "/uploads/" + item.Image
}

// UploadImage handles PUT /items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	icon, err := imaging.ProcessIcon(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid image")
		return
	}

	found, err := store.SetItemIcon(r.Context(), h.DB, id, icon.Data, icon.MIME)
	if err != nil {
		slog.Error("failed to save item icon", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item icon uploaded", "user", claims.Username, "item", id, "bytes", len(icon.Data))

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil || item == nil {
		jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
		return
	}
	h.setImageURL(item)
	jsonResponse(w, http.StatusOK, item)
}

// GetImage handles GET /items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemIcon(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item icon", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
