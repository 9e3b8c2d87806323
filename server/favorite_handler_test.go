package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"streamflow/model"
)

type stubFavoriteRepo struct {
	records map[string]model.FavoriteRecord // keyed "<userID>:<trackID>"
	nextID  int64
}

func newStubFavoriteRepo() *stubFavoriteRepo {
	return &stubFavoriteRepo{records: map[string]model.FavoriteRecord{}, nextID: 1}
}

func favKey(userID int64, trackID string) string {
	return fmt.Sprintf("%d:%s", userID, trackID)
}

func (r *stubFavoriteRepo) Add(userID int64, track model.Track) (bool, error) {
	key := favKey(userID, track.ID)
	if _, exists := r.records[key]; exists {
		return false, nil
	}
	r.records[key] = model.FavoriteRecord{
		ID:      r.nextID,
		UserID:  userID,
		TrackID: track.ID,
		Track:   track,
	}
	r.nextID++
	return true, nil
}

func (r *stubFavoriteRepo) Remove(userID int64, trackID string) (bool, error) {
	key := favKey(userID, trackID)
	if _, exists := r.records[key]; !exists {
		return false, nil
	}
	delete(r.records, key)
	return true, nil
}

func (r *stubFavoriteRepo) IsLiked(userID int64, trackID string) (bool, error) {
	_, exists := r.records[favKey(userID, trackID)]
	return exists, nil
}

func (r *stubFavoriteRepo) List(userID int64) ([]model.FavoriteRecord, error) {
	var out []model.FavoriteRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubFavoriteRepo) Count(userID int64) (int, error) {
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *stubFavoriteRepo) BulkImport(userID int64, tracks []model.Track) (int, error) {
	imported := 0
	for _, track := range tracks {
		inserted, err := r.Add(userID, track)
		if err != nil {
			return imported, err
		}
		if inserted {
			imported++
		}
	}
	return imported, nil
}

const favTestUserID int64 = 7

func authedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := context.WithValue(req.Context(), userIDKey, favTestUserID)
	ctx = context.WithValue(ctx, usernameKey, "tester")
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestFavoriteAddIsLikedRemoveSequence(t *testing.T) {
	repo := newStubFavoriteRepo()
	h := &APIHandler{favoriteRepo: repo}
	track := model.Track{ID: "421", Title: "Sospesa", ArtistName: "Anitek"}

	rr := httptest.NewRecorder()
	h.AddFavoriteHandler(rr, authedRequest(t, http.MethodPost, "/api/favorites", track))
	if rr.Code != http.StatusOK {
		t.Fatalf("add status = %d, body %s", rr.Code, rr.Body.String())
	}
	var addResp struct {
		Liked bool `json:"liked"`
		Added bool `json:"added"`
	}
	decodeBody(t, rr, &addResp)
	if !addResp.Liked || !addResp.Added {
		t.Fatalf("add response = %+v, want liked and added", addResp)
	}

	rr = httptest.NewRecorder()
	req := authedRequest(t, http.MethodGet, "/api/favorites/421", nil)
	h.IsLikedHandler(rr, mux.SetURLVars(req, map[string]string{"trackId": "421"}))
	var likedResp struct {
		Liked bool `json:"liked"`
	}
	decodeBody(t, rr, &likedResp)
	if !likedResp.Liked {
		t.Fatal("track must be liked after add")
	}

	rr = httptest.NewRecorder()
	req = authedRequest(t, http.MethodDelete, "/api/favorites/421", nil)
	h.RemoveFavoriteHandler(rr, mux.SetURLVars(req, map[string]string{"trackId": "421"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body %s", rr.Code, rr.Body.String())
	}
	var removeResp struct {
		Liked   bool `json:"liked"`
		Removed bool `json:"removed"`
	}
	decodeBody(t, rr, &removeResp)
	if removeResp.Liked || !removeResp.Removed {
		t.Fatalf("remove response = %+v, want unliked and removed", removeResp)
	}

	rr = httptest.NewRecorder()
	req = authedRequest(t, http.MethodGet, "/api/favorites/421", nil)
	h.IsLikedHandler(rr, mux.SetURLVars(req, map[string]string{"trackId": "421"}))
	decodeBody(t, rr, &likedResp)
	if likedResp.Liked {
		t.Fatal("track must not be liked after remove")
	}
}

func TestFavoriteDoubleAddKeepsSingleRecord(t *testing.T) {
	repo := newStubFavoriteRepo()
	h := &APIHandler{favoriteRepo: repo}
	track := model.Track{ID: "885", Title: "Night Owl", ArtistName: "Broke For Free"}

	for i, wantAdded := range []bool{true, false} {
		rr := httptest.NewRecorder()
		h.AddFavoriteHandler(rr, authedRequest(t, http.MethodPost, "/api/favorites", track))
		if rr.Code != http.StatusOK {
			t.Fatalf("add #%d status = %d, body %s", i+1, rr.Code, rr.Body.String())
		}
		var resp struct {
			Liked bool `json:"liked"`
			Added bool `json:"added"`
		}
		decodeBody(t, rr, &resp)
		if !resp.Liked {
			t.Fatalf("add #%d must report liked", i+1)
		}
		if resp.Added != wantAdded {
			t.Fatalf("add #%d: added = %v, want %v", i+1, resp.Added, wantAdded)
		}
	}

	count, err := repo.Count(favTestUserID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("stored records = %d, want exactly 1", count)
	}
}

func TestMigrateImportsOnlyIntoEmptyFavorites(t *testing.T) {
	repo := newStubFavoriteRepo()
	h := &APIHandler{favoriteRepo: repo}
	legacy := map[string]interface{}{
		"tracks": []model.Track{
			{ID: "100", Title: "One"},
			{ID: "200", Title: "Two"},
		},
	}

	rr := httptest.NewRecorder()
	h.MigrateFavoritesHandler(rr, authedRequest(t, http.MethodPost, "/api/favorites/migrate", legacy))
	if rr.Code != http.StatusOK {
		t.Fatalf("migrate status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Migrated bool `json:"migrated"`
		Imported int  `json:"imported"`
	}
	decodeBody(t, rr, &resp)
	if !resp.Migrated || resp.Imported != 2 {
		t.Fatalf("first migrate = %+v, want migrated with 2 imports", resp)
	}

	// Favorites now exist; a retried migration must not touch them.
	rr = httptest.NewRecorder()
	h.MigrateFavoritesHandler(rr, authedRequest(t, http.MethodPost, "/api/favorites/migrate", legacy))
	if rr.Code != http.StatusOK {
		t.Fatalf("second migrate status = %d, body %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &resp)
	if resp.Migrated || resp.Imported != 0 {
		t.Fatalf("second migrate = %+v, want skipped with 0 imports", resp)
	}

	count, err := repo.Count(favTestUserID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("stored records = %d, want 2", count)
	}
}
