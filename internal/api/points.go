package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/ecoleta/internal/model"
	"github.com/erazemk/ecoleta/internal/store"
)

// PointsHandler handles collection point endpoints.
type PointsHandler struct {
	DB *sql.DB
}

// Create handles POST /points.
func (h *PointsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.PointInput
	if err := decodeJSON(w, r, &in); err != nil {
		decodeError(w, err)
		return
	}

	point, err := store.CreatePoint(r.Context(), h.DB, in)
	if err != nil {
		h.writeStoreError(w, "create", err)
		return
	}

	slog.Info("point created", "point", point.ID, "name", point.Name, "uf", point.UF, "city", point.City, "items", len(point.Items))
	jsonResponse(w, http.StatusCreated, point)
}

// List handles GET /points with optional uf, city and items filters.
func (h *PointsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PointFilter{
		UF:   q.Get("uf"),
		City: q.Get("city"),
	}

	if raw := q.Get("items"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "invalid items filter")
				return
			}
			filter.Items = append(filter.Items, id)
		}
	}

	points, err := store.ListPoints(r.Context(), h.DB, filter)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		jsonResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid items filter", Fields: ve.Problems})
		return
	}
	if err != nil {
		slog.Error("failed to list points", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list points")
		return
	}
	if points == nil {
		points = []model.Point{}
	}
	jsonResponse(w, http.StatusOK, points)
}

// Get handles GET /points/{id}.
func (h *PointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid point id")
		return
	}

	point, err := store.GetPoint(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get point", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get point")
		return
	}
	if point == nil {
		jsonError(w, http.StatusNotFound, "point not found")
		return
	}

	jsonResponse(w, http.StatusOK, point)
}

// Update handles PUT /points/{id}.
func (h *PointsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid point id")
		return
	}

	var in model.PointInput
	if err := decodeJSON(w, r, &in); err != nil {
		decodeError(w, err)
		return
	}

	point, err := store.UpdatePoint(r.Context(), h.DB, id, in)
	if err != nil {
		h.writeStoreError(w, "update", err)
		return
	}
	if point == nil {
		jsonError(w, http.StatusNotFound, "point not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("point updated", "user", claims.Username, "point", point.ID)
	jsonResponse(w, http.StatusOK, point)
}

// Delete handles DELETE /points/{id}.
func (h *PointsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid point id")
		return
	}

	deleted, err := store.DeletePoint(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to delete point", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete point")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "point not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("point deleted", "user", claims.Username, "point", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "point deleted"})
}

// writeStoreError maps a store failure to 400 for invalid input and 500 for
// everything else.
func (h *PointsHandler) writeStoreError(w http.ResponseWriter, op string, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		validationError(w, ve)
		return
	}
	slog.Error("failed to "+op+" point", "error", err)
	jsonError(w, http.StatusInternalServerError, "failed to "+op+" point")
}
