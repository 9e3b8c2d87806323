package player

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"streamflow/model"
)

// mockStore implements Store in memory and can be told to fail writes.
type mockStore struct {
	queue    []model.QueueEntry
	state    model.PlayerState
	saveErr  error
	stateErr error

	saveCalls  int
	stateCalls int
}

func (m *mockStore) Load(ctx context.Context, userID int64) ([]model.QueueEntry, model.PlayerState) {
	out := make([]model.QueueEntry, len(m.queue))
	copy(out, m.queue)
	return out, m.state
}

func (m *mockStore) Save(ctx context.Context, userID int64, queue []model.QueueEntry) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.queue = make([]model.QueueEntry, len(queue))
	copy(m.queue, queue)
	return nil
}

func (m *mockStore) SaveState(ctx context.Context, userID int64, state model.PlayerState) error {
	m.stateCalls++
	if m.stateErr != nil {
		return m.stateErr
	}
	m.state = state
	return nil
}

func (m *mockStore) Clear(ctx context.Context, userID int64) error {
	m.queue = nil
	m.state = model.PlayerState{}
	return nil
}

func track(id string) model.Track {
	return model.Track{ID: id, Title: "Track " + id, ArtistName: "Artist", Duration: "180"}
}

func loadedPlayer(t *testing.T, ids ...string) (*Player, *mockStore) {
	t.Helper()
	store := &mockStore{}
	p := Load(context.Background(), store, 1)
	for _, id := range ids {
		if res := p.PlayTrack(context.Background(), track(id)); res != Persisted {
			t.Fatalf("PlayTrack(%s) not persisted", id)
		}
	}
	return p, store
}

func assertInvariant(t *testing.T, p *Player) {
	t.Helper()
	q := p.Queue()
	if len(q) == 0 {
		if p.State() != StateEmpty {
			t.Fatalf("empty queue but state = %v", p.State())
		}
		return
	}
	snap := p.Snapshot()
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(q) {
		t.Fatalf("index %d out of range for queue of %d", snap.CurrentIndex, len(q))
	}
	if snap.CurrentTrackID != q[snap.CurrentIndex].Track.ID {
		t.Fatalf("currentTrackId %q does not match entry at index %d (%q)",
			snap.CurrentTrackID, snap.CurrentIndex, q[snap.CurrentIndex].Track.ID)
	}
}

func TestPlayTrackAppendsAndJumps(t *testing.T) {
	p, _ := loadedPlayer(t, "a", "b", "c")

	cur, ok := p.Current()
	if !ok || cur.ID != "c" {
		t.Fatalf("expected current c, got %v ok=%v", cur.ID, ok)
	}
	if len(p.Queue()) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(p.Queue()))
	}

	// Playing an existing track jumps instead of appending.
	p.PlayTrack(context.Background(), track("a"))
	cur, _ = p.Current()
	if cur.ID != "a" {
		t.Fatalf("expected jump to a, got %s", cur.ID)
	}
	if len(p.Queue()) != 3 {
		t.Fatalf("jump must not grow the queue, got %d entries", len(p.Queue()))
	}
	assertInvariant(t, p)
}

func TestNextSequential(t *testing.T) {
	tests := []struct {
		name      string
		startIdx  int
		repeat    bool
		wantMoved bool
		wantIdx   int
	}{
		{"middle advances", 0, false, true, 1},
		{"last without repeat is no-op", 2, false, false, 2},
		{"last with repeat wraps to start", 2, true, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := loadedPlayer(t, "a", "b", "c")
			p.PlayTrack(context.Background(), track([]string{"a", "b", "c"}[tt.startIdx]))
			if p.RepeatMode() != tt.repeat {
				p.ToggleRepeat(context.Background())
			}

			moved, res := p.Next(context.Background())
			if res != Persisted {
				t.Fatalf("unexpected persist failure")
			}
			if moved != tt.wantMoved {
				t.Fatalf("moved = %v, want %v", moved, tt.wantMoved)
			}
			if got := p.Snapshot().CurrentIndex; got != tt.wantIdx {
				t.Fatalf("index = %d, want %d", got, tt.wantIdx)
			}
			assertInvariant(t, p)
		})
	}
}

func TestNextShuffleNeverRepeatsCurrent(t *testing.T) {
	p, _ := loadedPlayer(t, "a", "b", "c", "d")
	p.ToggleShuffle(context.Background())

	// Each call draws a fresh random pick; the only guarantee is that it
	// differs from the current index and stays in range.
	for i := 0; i < 100; i++ {
		before := p.Snapshot().CurrentIndex
		moved, _ := p.Next(context.Background())
		if !moved {
			t.Fatalf("shuffle next must always move with >1 entries")
		}
		after := p.Snapshot().CurrentIndex
		if after == before {
			t.Fatalf("shuffle pick repeated current index %d", before)
		}
		assertInvariant(t, p)
	}
}

func TestNextShuffleSingleEntry(t *testing.T) {
	p, _ := loadedPlayer(t, "a")
	p.ToggleShuffle(context.Background())

	moved, _ := p.Next(context.Background())
	if moved {
		t.Fatalf("single-entry shuffle next must be a no-op")
	}
}

func TestPrevClampsAtStart(t *testing.T) {
	p, _ := loadedPlayer(t, "a", "b")
	p.ToggleRepeat(context.Background())
	p.ToggleShuffle(context.Background())
	p.PlayTrack(context.Background(), track("a"))

	// At index 0, prev is a no-op regardless of repeat/shuffle flags.
	moved, _ := p.Prev(context.Background())
	if moved {
		t.Fatalf("prev at start must not move")
	}
	if got := p.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("index = %d, want 0", got)
	}

	p.PlayTrack(context.Background(), track("b"))
	moved, _ = p.Prev(context.Background())
	if !moved || p.Snapshot().CurrentIndex != 0 {
		t.Fatalf("prev from 1 should land on 0, got moved=%v idx=%d", moved, p.Snapshot().CurrentIndex)
	}
	assertInvariant(t, p)
}

func TestToggleFlagsAreIndependent(t *testing.T) {
	p, _ := loadedPlayer(t, "a")

	if on, _ := p.ToggleRepeat(context.Background()); !on {
		t.Fatalf("repeat should be on")
	}
	if on, _ := p.ToggleShuffle(context.Background()); !on {
		t.Fatalf("shuffle should be on")
	}
	if !p.RepeatMode() || !p.ShuffleMode() {
		t.Fatalf("both flags must be active simultaneously")
	}
	if on, _ := p.ToggleRepeat(context.Background()); on {
		t.Fatalf("repeat should be off again")
	}
	if !p.ShuffleMode() {
		t.Fatalf("toggling repeat must not touch shuffle")
	}
}

func TestRemoveTrack(t *testing.T) {
	tests := []struct {
		name        string
		current     string
		remove      string
		wantCurrent string
		wantLen     int
	}{
		{"remove after current", "a", "c", "a", 2},
		{"remove before current shifts index", "c", "a", "c", 2},
		{"remove current", "b", "b", "a", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := loadedPlayer(t, "a", "b", "c")
			p.PlayTrack(context.Background(), track(tt.current))

			if res := p.RemoveTrack(context.Background(), tt.remove); res != Persisted {
				t.Fatalf("unexpected persist failure")
			}
			if got := len(p.Queue()); got != tt.wantLen {
				t.Fatalf("queue length = %d, want %d", got, tt.wantLen)
			}
			cur, ok := p.Current()
			if !ok || cur.ID != tt.wantCurrent {
				t.Fatalf("current = %v, want %s", cur.ID, tt.wantCurrent)
			}
			assertInvariant(t, p)
		})
	}
}

func TestRemoveLastTrackReachesTerminalState(t *testing.T) {
	p, _ := loadedPlayer(t, "a")
	p.RemoveTrack(context.Background(), "a")

	if p.State() != StateEmpty {
		t.Fatalf("state = %v, want empty", p.State())
	}
	if _, ok := p.Current(); ok {
		t.Fatalf("empty queue must have no current track")
	}
	if p.Snapshot().CurrentTrackID != "" {
		t.Fatalf("terminal state must clear currentTrackId")
	}
}

func TestReorderKeepsCurrentTrackCurrent(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"move current to front", 2, 0},
		{"move other across current", 0, 3},
		{"move from behind to before current", 3, 1},
		{"same position", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := loadedPlayer(t, "a", "b", "c", "d")
			p.PlayTrack(context.Background(), track("c"))

			_, ok := p.Reorder(context.Background(), tt.from, tt.to)
			if !ok {
				t.Fatalf("reorder rejected valid indices %d -> %d", tt.from, tt.to)
			}
			cur, _ := p.Current()
			if cur.ID != "c" {
				t.Fatalf("current track changed to %s after reorder", cur.ID)
			}
			assertInvariant(t, p)
		})
	}
}

func TestReorderRejectsOutOfRange(t *testing.T) {
	p, _ := loadedPlayer(t, "a", "b")
	if _, ok := p.Reorder(context.Background(), 0, 5); ok {
		t.Fatalf("out-of-range reorder must be rejected")
	}
	if _, ok := p.Reorder(context.Background(), -1, 0); ok {
		t.Fatalf("negative index must be rejected")
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	p, store := loadedPlayer(t, "a", "b")
	store.saveErr = errors.New("redis down")
	store.stateErr = errors.New("redis down")

	res := p.PlayTrack(context.Background(), track("z"))
	if res != PersistFailed {
		t.Fatalf("expected PersistFailed, got %v", res)
	}
	// In-memory state advanced despite the storage failure.
	cur, _ := p.Current()
	if cur.ID != "z" {
		t.Fatalf("in-memory state lost after persist failure, current = %s", cur.ID)
	}
	assertInvariant(t, p)
}

func TestLoadRepairsStaleIndex(t *testing.T) {
	store := &mockStore{}
	for i := 0; i < 3; i++ {
		store.queue = append(store.queue, model.QueueEntry{Track: track(fmt.Sprintf("t%d", i)), Position: i})
	}
	// Stored index drifted but the track id still exists at another slot.
	store.state = model.PlayerState{CurrentIndex: 0, CurrentTrackID: "t2"}

	p := Load(context.Background(), store, 1)
	cur, _ := p.Current()
	if cur.ID != "t2" {
		t.Fatalf("expected id to win over stale index, got %s", cur.ID)
	}

	// Out-of-range index with an unknown id clamps.
	store.state = model.PlayerState{CurrentIndex: 99, CurrentTrackID: "gone"}
	p = Load(context.Background(), store, 1)
	if got := p.Snapshot().CurrentIndex; got != 2 {
		t.Fatalf("expected clamp to last index, got %d", got)
	}
	assertInvariant(t, p)
}

func TestStateNames(t *testing.T) {
	p, _ := loadedPlayer(t)
	if p.State() != StateEmpty {
		t.Fatalf("fresh player state = %v", p.State())
	}

	p.PlayTrack(context.Background(), track("a"))
	if p.State() != StateAtEnd {
		t.Fatalf("single entry should report at_end, got %v", p.State())
	}

	p.PlayTrack(context.Background(), track("b"))
	p.PlayTrack(context.Background(), track("c"))
	p.PlayTrack(context.Background(), track("a"))
	if p.State() != StateAtStart {
		t.Fatalf("index 0 of 3 should report at_start, got %v", p.State())
	}

	p.Next(context.Background())
	if p.State() != StateReady {
		t.Fatalf("middle index should report ready, got %v", p.State())
	}
}
