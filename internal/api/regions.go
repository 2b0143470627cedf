package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/ecoleta/internal/geo"
)

// RegionsHandler proxies region and locality lookups.
type RegionsHandler struct {
	Geo geo.Lookup
}

// List handles GET /regions.
func (h *RegionsHandler) List(w http.ResponseWriter, r *http.Request) {
	regions, err := h.Geo.Regions(r.Context())
	if err != nil {
		slog.Warn("region lookup failed", "error", err)
		jsonError(w, http.StatusBadGateway, "region lookup unavailable")
		return
	}
	if regions == nil {
		regions = []string{}
	}
	jsonResponse(w, http.StatusOK, regions)
}

// Localities handles GET /regions/{uf}/localities.
func (h *RegionsHandler) Localities(w http.ResponseWriter, r *http.Request) {
	localities, err := h.Geo.Localities(r.Context(), r.PathValue("uf"))
	if err != nil {
		if errors.Is(err, geo.ErrInvalidRegion) {
			jsonError(w, http.StatusBadRequest, "invalid region code")
			return
		}
		slog.Warn("locality lookup failed", "uf", r.PathValue("uf"), "error", err)
		jsonError(w, http.StatusBadGateway, "locality lookup unavailable")
		return
	}
	if localities == nil {
		localities = []string{}
	}
	jsonResponse(w, http.StatusOK, localities)
}
