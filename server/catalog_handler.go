package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streamflow/logger"
)

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// SearchTracksHandler proxies a track search to the catalog provider.
func (h *APIHandler) SearchTracksHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	tracks, err := h.catalog.SearchTracks(r.Context(), query, parseLimit(r))
	if err != nil {
		logger.Error("[Catalog] track search failed",
			logger.String("query", query), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Catalog search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// ChartHandler returns the most popular tracks from the catalog provider.
func (h *APIHandler) ChartHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.Chart(r.Context(), parseLimit(r))
	if err != nil {
		logger.Error("[Catalog] chart request failed", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Catalog request failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// GetTrackHandler fetches a single track by catalog ID.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.catalog.TrackByID(r.Context(), trackID)
	if err != nil {
		logger.Error("[Catalog] track lookup failed",
			logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Catalog request failed")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

// SearchArtistsHandler proxies an artist search to the catalog provider.
func (h *APIHandler) SearchArtistsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	artists, err := h.catalog.SearchArtists(r.Context(), query, parseLimit(r))
	if err != nil {
		logger.Error("[Catalog] artist search failed",
			logger.String("query", query), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Catalog search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"artists": artists})
}
