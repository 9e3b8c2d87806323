package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"streamflow/logger"
	"streamflow/model"
	"streamflow/repository"
)

// CreatePlaylistHandler creates a playlist, subject to the caller's plan
// limit on playlist count.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}

	plan, err := h.effectivePlan(userID)
	if err != nil {
		logger.Error("[Playlists] failed to resolve plan",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create playlist")
		return
	}
	if plan.MaxPlaylists > 0 {
		count, err := h.playlistRepo.CountByUser(userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create playlist")
			return
		}
		if count >= plan.MaxPlaylists {
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("Playlist limit reached (%d). Upgrade your plan to create more.", plan.MaxPlaylists))
			return
		}
	}

	playlist, err := h.playlistRepo.Create(userID, req.Name, req.Description, req.IsPublic)
	if err != nil {
		logger.Error("[Playlists] failed to create playlist",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create playlist")
		return
	}

	writeJSON(w, http.StatusCreated, playlist)
}

// ListPlaylistsHandler returns the caller's playlists with track counts.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	playlists, err := h.playlistRepo.ListByUser(userID)
	if err != nil {
		logger.Error("[Playlists] failed to list playlists",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list playlists")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

// GetPlaylistHandler returns a playlist with its tracks in order.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	playlistID := mux.Vars(r)["id"]
	playlist, err := h.playlistRepo.GetByID(userID, playlistID)
	if err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		logger.Error("[Playlists] failed to get playlist",
			logger.String("playlistId", playlistID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get playlist")
		return
	}

	writeJSON(w, http.StatusOK, playlist)
}

// UpdatePlaylistHandler renames a playlist or changes its visibility.
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}

	playlistID := mux.Vars(r)["id"]
	if err := h.playlistRepo.Update(userID, playlistID, req.Name, req.Description, req.IsPublic); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		logger.Error("[Playlists] failed to update playlist",
			logger.String("playlistId", playlistID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update playlist")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Playlist updated"})
}

// DeletePlaylistHandler deletes a playlist and its track rows.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	playlistID := mux.Vars(r)["id"]
	if err := h.playlistRepo.Delete(userID, playlistID); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		logger.Error("[Playlists] failed to delete playlist",
			logger.String("playlistId", playlistID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete playlist")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Playlist deleted"})
}

// AddPlaylistTrackHandler appends a track to a playlist, subject to the
// caller's plan limit on tracks per playlist. Re-adding a track that is
// already in the playlist is a no-op.
func (h *APIHandler) AddPlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
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

	playlistID := mux.Vars(r)["id"]
	if _, err := h.playlistRepo.GetByID(userID, playlistID); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to add track")
		return
	}

	plan, err := h.effectivePlan(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add track")
		return
	}
	if plan.MaxPlaylistTracks > 0 {
		count, err := h.playlistRepo.CountTracks(playlistID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to add track")
			return
		}
		if count >= plan.MaxPlaylistTracks {
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("Playlist track limit reached (%d). Upgrade your plan to add more.", plan.MaxPlaylistTracks))
			return
		}
	}

	if err := h.playlistRepo.AddTrack(userID, playlistID, track); err != nil {
		logger.Error("[Playlists] failed to add track",
			logger.String("playlistId", playlistID),
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to add track")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Track added"})
}

// RemovePlaylistTrackHandler removes a track from a playlist.
func (h *APIHandler) RemovePlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	playlistID := vars["id"]
	trackID := vars["trackId"]

	if _, err := h.playlistRepo.GetByID(userID, playlistID); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to remove track")
		return
	}

	if err := h.playlistRepo.RemoveTrack(userID, playlistID, trackID); err != nil {
		logger.Error("[Playlists] failed to remove track",
			logger.String("playlistId", playlistID),
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to remove track")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Track removed"})
}
