package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-client", 2*time.Second)
}

func TestSearchTracks(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/tracks") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != "ambient" {
			t.Errorf("search query = %q, want ambient", got)
		}
		if got := r.URL.Query().Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"headers": {"status": "success", "code": 0, "results_fullcount": 2},
			"results": [
				{"id": "168", "name": "First", "artist_name": "A", "duration": "183", "audio": "https://cdn/a.mp3"},
				{"id": "169", "name": "Second", "artist_name": "B", "duration": "240", "audio": "https://cdn/b.mp3"}
			]
		}`))
	})

	tracks, err := client.SearchTracks(context.Background(), "ambient", 10)
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].ID != "168" || tracks[0].Title != "First" || tracks[0].Duration != "183" {
		t.Fatalf("unexpected first track: %+v", tracks[0])
	}
}

func TestEnvelopeFailureIsError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 with a failed envelope still counts as an error.
		w.Write([]byte(`{
			"headers": {"status": "failed", "code": 5, "error_message": "Suspended application"},
			"results": []
		}`))
	})

	_, err := client.SearchTracks(context.Background(), "x", 5)
	if err == nil {
		t.Fatalf("expected error for failed envelope status")
	}
	if !strings.Contains(err.Error(), "Suspended application") {
		t.Fatalf("error should carry the API message, got %v", err)
	}
}

func TestTrackByIDNotFound(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"headers": {"status": "success", "code": 0}, "results": []}`))
	})

	trk, err := client.TrackByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("TrackByID: %v", err)
	}
	if trk != nil {
		t.Fatalf("expected nil track for empty results, got %+v", trk)
	}
}

func TestNon200StatusIsError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	if _, err := client.Chart(context.Background(), 10); err == nil {
		t.Fatalf("expected error for HTTP 502")
	}
}

func TestSearchArtists(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/artists") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"headers": {"status": "success", "code": 0},
			"results": [{"id": "7", "name": "Sine Wave Collective"}]
		}`))
	})

	artists, err := client.SearchArtists(context.Background(), "sine", 5)
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if len(artists) != 1 || artists[0].Name != "Sine Wave Collective" {
		t.Fatalf("unexpected artists: %+v", artists)
	}
}

func TestLimitNormalization(t *testing.T) {
	var seen string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("limit")
		w.Write([]byte(`{"headers": {"status": "success"}, "results": []}`))
	})

	client.SearchTracks(context.Background(), "q", -3)
	if seen != "20" {
		t.Fatalf("limit %q, want default 20", seen)
	}
	client.SearchTracks(context.Background(), "q", 5000)
	if seen != "100" {
		t.Fatalf("limit %q, want cap 100", seen)
	}
}
