package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"streamflow/logger"
	"streamflow/model"
)

// AddFavoriteHandler likes a track. Liking an already-liked track is a
// no-op, not an error.
func (h *APIHandler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var track model.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if track.ID == "" {
		writeError(w, http.StatusBadRequest, "Track id is required")
		return
	}

	inserted, err := h.favoriteRepo.Add(userID, track)
	if err != nil {
		logger.Error("[Favorites] failed to add favorite",
			logger.Int64("userId", userID),
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to add favorite")
		return
	}
	if !inserted {
		logger.Warn("[Favorites] track already liked",
			logger.Int64("userId", userID), logger.String("trackId", track.ID))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"liked": true,
		"added": inserted,
	})
}

// RemoveFavoriteHandler unlikes a track. Removing an absent favorite is a
// no-op.
func (h *APIHandler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID := mux.Vars(r)["trackId"]
	removed, err := h.favoriteRepo.Remove(userID, trackID)
	if err != nil {
		logger.Error("[Favorites] failed to remove favorite",
			logger.Int64("userId", userID),
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to remove favorite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"liked":   false,
		"removed": removed,
	})
}

// ListFavoritesHandler returns the caller's liked tracks, newest first.
func (h *APIHandler) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	favorites, err := h.favoriteRepo.List(userID)
	if err != nil {
		logger.Error("[Favorites] failed to list favorites",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list favorites")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

// IsLikedHandler reports whether the caller has liked the given track.
func (h *APIHandler) IsLikedHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID := mux.Vars(r)["trackId"]
	liked, err := h.favoriteRepo.IsLiked(userID, trackID)
	if err != nil {
		logger.Error("[Favorites] failed to check favorite",
			logger.Int64("userId", userID),
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to check favorite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// MigrateFavoritesHandler imports a client's locally stored likes. The
// import only runs when the caller has no favorites on record yet, so a
// retried migration cannot duplicate or reorder anything.
func (h *APIHandler) MigrateFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Tracks []model.Track `json:"tracks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	count, err := h.favoriteRepo.Count(userID)
	if err != nil {
		logger.Error("[Favorites] failed to count favorites",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Migration failed")
		return
	}
	if count > 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"migrated": false,
			"imported": 0,
			"reason":   "favorites already exist",
		})
		return
	}

	imported, err := h.favoriteRepo.BulkImport(userID, req.Tracks)
	if err != nil {
		logger.Error("[Favorites] bulk import failed",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Migration failed")
		return
	}

	logger.Info("[Favorites] migrated legacy favorites",
		logger.Int64("userId", userID), logger.Int("imported", imported))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"migrated": true,
		"imported": imported,
	})
}
