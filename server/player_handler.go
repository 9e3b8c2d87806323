package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"streamflow/core/player"
	"streamflow/logger"
	"streamflow/model"
)

// playerResponse is the snapshot every queue mutation returns. The client
// renders from this alone, so it carries the full queue plus position.
type playerResponse struct {
	Queue         []model.QueueEntry `json:"queue"`
	CurrentIndex  int                `json:"currentIndex"`
	CurrentTrack  *model.Track       `json:"currentTrack"`
	IsRepeatMode  bool               `json:"isRepeatMode"`
	IsShuffleMode bool               `json:"isShuffleMode"`
	State         string             `json:"state"`
	Persisted     bool               `json:"persisted"`
}

func snapshotResponse(p *player.Player, result player.PersistResult) playerResponse {
	resp := playerResponse{
		Queue:         p.Queue(),
		CurrentIndex:  p.Snapshot().CurrentIndex,
		IsRepeatMode:  p.RepeatMode(),
		IsShuffleMode: p.ShuffleMode(),
		State:         p.State().String(),
		Persisted:     result == player.Persisted,
	}
	if track, ok := p.Current(); ok {
		resp.CurrentTrack = &track
	}
	return resp
}

func (h *APIHandler) loadPlayer(r *http.Request) (*player.Player, int64, error) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		return nil, 0, err
	}
	return player.Load(r.Context(), h.queueStore, userID), userID, nil
}

// GetQueueHandler returns the caller's full queue and player position.
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(p, player.Persisted))
}

// PlayTrackHandler makes the given track current, appending it to the queue
// when it is not already there. The play is also recorded to listening
// history and the recently played cache.
func (h *APIHandler) PlayTrackHandler(w http.ResponseWriter, r *http.Request) {
	p, userID, err := h.loadPlayer(r)
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

	result := p.PlayTrack(r.Context(), track)

	// History is best effort; a failed write never blocks playback.
	if err := h.historyRepo.Record(userID, track); err != nil {
		logger.Warn("[Player] failed to record listening history",
			logger.Int64("userId", userID), logger.ErrorField(err))
	}
	if err := h.recentCache.Push(r.Context(), userID, track); err != nil {
		logger.Warn("[Player] failed to update recently played",
			logger.Int64("userId", userID), logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, snapshotResponse(p, result))
}

// NextTrackHandler advances to the next track per the repeat and shuffle
// modes. moved=false means playback stayed where it was.
func (h *APIHandler) NextTrackHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	moved, result := p.Next(r.Context())
	resp := snapshotResponse(p, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"moved":  moved,
		"player": resp,
	})
}

// PrevTrackHandler steps back one position, stopping at the start.
func (h *APIHandler) PrevTrackHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	moved, result := p.Prev(r.Context())
	resp := snapshotResponse(p, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"moved":  moved,
		"player": resp,
	})
}

// ToggleRepeatHandler flips repeat mode.
func (h *APIHandler) ToggleRepeatHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	enabled, result := p.ToggleRepeat(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"isRepeatMode": enabled,
		"persisted":    result == player.Persisted,
	})
}

// ToggleShuffleHandler flips shuffle mode.
func (h *APIHandler) ToggleShuffleHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	enabled, result := p.ToggleShuffle(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"isShuffleMode": enabled,
		"persisted":     result == player.Persisted,
	})
}

// RemoveFromQueueHandler removes all queue occurrences of a track.
func (h *APIHandler) RemoveFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID := mux.Vars(r)["trackId"]
	if trackID == "" {
		writeError(w, http.StatusBadRequest, "Track id is required")
		return
	}

	result := p.RemoveTrack(r.Context(), trackID)
	writeJSON(w, http.StatusOK, snapshotResponse(p, result))
}

// ReorderQueueHandler moves the entry at `from` to `to`. The current track
// stays current across the move.
func (h *APIHandler) ReorderQueueHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, ok := p.Reorder(r.Context(), req.From, req.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "Reorder positions out of range")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse(p, result))
}

// ClearQueueHandler empties the queue and resets the position.
func (h *APIHandler) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.loadPlayer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result := p.ClearQueue(r.Context())
	writeJSON(w, http.StatusOK, snapshotResponse(p, result))
}

// RecentlyPlayedHandler returns the caller's most recent plays, newest
// first.
func (h *APIHandler) RecentlyPlayedHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tracks, err := h.recentCache.List(r.Context(), userID, limit)
	if err != nil {
		logger.Error("[Player] failed to read recently played",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load recently played")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// ListeningHistoryHandler returns rows from the durable history table.
func (h *APIHandler) ListeningHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.historyRepo.Recent(userID, limit)
	if err != nil {
		logger.Error("[Player] failed to read listening history",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// GetPreferencesHandler returns the caller's playback preferences.
func (h *APIHandler) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, h.prefStore.Get(r.Context(), userID))
}

// UpdatePreferencesHandler stores the caller's playback preferences.
func (h *APIHandler) UpdatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var prefs model.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.prefStore.Set(r.Context(), userID, prefs); err != nil {
		logger.Error("[Player] failed to save preferences",
			logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
