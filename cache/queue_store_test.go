package cache

import (
	"encoding/json"
	"testing"
	"time"

	"streamflow/model"
)

func TestDecodeEntryRoundTrip(t *testing.T) {
	addedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	original := model.QueueEntry{
		Track: model.Track{
			ID:         "168",
			Title:      "Tout Seul",
			ArtistName: "Vincent",
			Duration:   "183",
		},
		AddedAt:  addedAt,
		Position: 3,
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := decodeEntry(string(raw))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}

	if decoded.Track.ID != original.Track.ID {
		t.Errorf("track id = %q, want %q", decoded.Track.ID, original.Track.ID)
	}
	if decoded.Position != original.Position {
		t.Errorf("position = %d, want %d", decoded.Position, original.Position)
	}
	if !decoded.AddedAt.Equal(addedAt) {
		t.Errorf("addedAt = %v, want %v", decoded.AddedAt, addedAt)
	}
	if decoded.AddedAt.IsZero() {
		t.Error("addedAt must survive the round trip as a usable timestamp")
	}
}

func TestDecodeEntryRejectsCorruptData(t *testing.T) {
	tests := []struct {
		name   string
		member string
	}{
		{"not json", "{{nope"},
		{"empty object", "{}"},
		{"missing track id", `{"track":{"name":"No ID"},"position":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEntry(tt.member); err == nil {
				t.Errorf("decodeEntry(%q) accepted corrupt data", tt.member)
			}
		})
	}
}
