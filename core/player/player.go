// Package player holds the authoritative playback queue and position for a
// user and exposes the state transitions the API surface drives. All
// operations are synchronous; the only failure mode is a storage write
// error, which is reported through PersistResult while the in-memory state
// stays valid.
package player

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"streamflow/logger"
	"streamflow/model"
)

// State is the explicit enumeration of the player's position within the
// queue. A single-entry queue reports AtEnd, which is the state that governs
// wrap behavior.
type State int

const (
	// StateEmpty is the terminal state: no queue, no current track.
	StateEmpty State = iota
	// StateAtStart means the current index is the first entry.
	StateAtStart
	// StateReady means the current index is strictly inside the queue.
	StateReady
	// StateAtEnd means the current index is the last entry.
	StateAtEnd
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAtStart:
		return "at_start"
	case StateReady:
		return "ready"
	case StateAtEnd:
		return "at_end"
	}
	return "unknown"
}

// PersistResult reports whether a state transition reached storage. The
// transition itself always succeeds in memory.
type PersistResult int

const (
	Persisted PersistResult = iota
	PersistFailed
)

// Store is the persistence boundary for queue and player state. Load never
// fails: absent or corrupt data yields an empty queue and zero state.
type Store interface {
	Load(ctx context.Context, userID int64) ([]model.QueueEntry, model.PlayerState)
	Save(ctx context.Context, userID int64, queue []model.QueueEntry) error
	SaveState(ctx context.Context, userID int64, state model.PlayerState) error
	Clear(ctx context.Context, userID int64) error
}

// Player is the per-user playback controller. Invariant: whenever the queue
// is non-empty, 0 <= index < len(queue) and the persisted CurrentTrackID
// matches the entry at index.
type Player struct {
	store  Store
	userID int64

	queue   []model.QueueEntry
	index   int
	repeat  bool
	shuffle bool
}

// Load restores a user's player from storage, repairing any inconsistency
// between the stored index and track id.
func Load(ctx context.Context, store Store, userID int64) *Player {
	queue, state := store.Load(ctx, userID)

	p := &Player{
		store:   store,
		userID:  userID,
		queue:   queue,
		index:   state.CurrentIndex,
		repeat:  state.IsRepeatMode,
		shuffle: state.IsShuffleMode,
	}
	p.repair(state.CurrentTrackID)
	return p
}

// repair clamps the index and reconciles it with the persisted track id.
// The id wins when it still exists in the queue: a stale index after an
// out-of-band queue edit should not silently change the current track.
func (p *Player) repair(storedTrackID string) {
	if len(p.queue) == 0 {
		p.index = 0
		return
	}
	if p.index < 0 {
		p.index = 0
	}
	if p.index >= len(p.queue) {
		p.index = len(p.queue) - 1
	}
	if storedTrackID != "" && p.queue[p.index].Track.ID != storedTrackID {
		for i, entry := range p.queue {
			if entry.Track.ID == storedTrackID {
				p.index = i
				return
			}
		}
	}
}

// Queue returns a copy of the queue in playback order.
func (p *Player) Queue() []model.QueueEntry {
	out := make([]model.QueueEntry, len(p.queue))
	copy(out, p.queue)
	return out
}

// Current returns the current track, if any.
func (p *Player) Current() (model.Track, bool) {
	if len(p.queue) == 0 {
		return model.Track{}, false
	}
	return p.queue[p.index].Track, true
}

// State reports the player's position state.
func (p *Player) State() State {
	switch {
	case len(p.queue) == 0:
		return StateEmpty
	case p.index == len(p.queue)-1:
		return StateAtEnd
	case p.index == 0:
		return StateAtStart
	default:
		return StateReady
	}
}

// Snapshot returns the persistable player state.
func (p *Player) Snapshot() model.PlayerState {
	state := model.PlayerState{
		CurrentIndex:  p.index,
		IsRepeatMode:  p.repeat,
		IsShuffleMode: p.shuffle,
	}
	if len(p.queue) > 0 {
		state.CurrentTrackID = p.queue[p.index].Track.ID
	}
	return state
}

// RepeatMode reports the repeat flag.
func (p *Player) RepeatMode() bool { return p.repeat }

// ShuffleMode reports the shuffle flag.
func (p *Player) ShuffleMode() bool { return p.shuffle }

// PlayTrack makes the given track current. A track already in the queue is
// jumped to; otherwise it is appended and played. The queue and state are
// written through immediately.
func (p *Player) PlayTrack(ctx context.Context, track model.Track) PersistResult {
	for i, entry := range p.queue {
		if entry.Track.ID == track.ID {
			p.index = i
			return p.persistState(ctx)
		}
	}

	p.queue = append(p.queue, model.QueueEntry{
		Track:    track,
		AddedAt:  time.Now(),
		Position: len(p.queue),
	})
	p.index = len(p.queue) - 1
	return p.persistAll(ctx)
}

// Next advances to the next track. In shuffle mode each call draws a fresh
// uniformly random index different from the current one; repeated calls may
// revisit tracks sooner than a consumed permutation would. Sequentially, the
// index advances by one; at the end of the queue it wraps to 0 only in
// repeat mode, otherwise the call is a no-op and the player stays stopped at
// the last entry. Returns whether the index moved.
func (p *Player) Next(ctx context.Context) (bool, PersistResult) {
	if len(p.queue) == 0 {
		return false, Persisted
	}

	if p.shuffle && len(p.queue) > 1 {
		p.index = p.randomOtherIndex()
		return true, p.persistState(ctx)
	}

	if p.index < len(p.queue)-1 {
		p.index++
		return true, p.persistState(ctx)
	}

	if p.repeat {
		p.index = 0
		return true, p.persistState(ctx)
	}
	return false, Persisted
}

// Prev steps back one track, clamped at the first entry. Never wraps,
// regardless of repeat or shuffle. Returns whether the index moved.
func (p *Player) Prev(ctx context.Context) (bool, PersistResult) {
	if len(p.queue) == 0 || p.index == 0 {
		return false, Persisted
	}
	p.index--
	return true, p.persistState(ctx)
}

// ToggleRepeat flips the repeat flag and returns the new value.
func (p *Player) ToggleRepeat(ctx context.Context) (bool, PersistResult) {
	p.repeat = !p.repeat
	return p.repeat, p.persistState(ctx)
}

// ToggleShuffle flips the shuffle flag and returns the new value. Both flags
// may be active at once: repeat governs end-of-queue wrap, shuffle governs
// next-track selection.
func (p *Player) ToggleShuffle(ctx context.Context) (bool, PersistResult) {
	p.shuffle = !p.shuffle
	return p.shuffle, p.persistState(ctx)
}

// RemoveTrack removes every queue entry with the given track id. The index
// is decremented once per removed entry at or before it, so the logical
// "next" track stays in place, then clamped to the valid range.
func (p *Player) RemoveTrack(ctx context.Context, trackID string) PersistResult {
	kept := make([]model.QueueEntry, 0, len(p.queue))
	newIndex := p.index
	for i, entry := range p.queue {
		if entry.Track.ID == trackID {
			if i <= p.index && newIndex > 0 {
				newIndex--
			}
			continue
		}
		kept = append(kept, entry)
	}

	p.queue = kept
	if len(p.queue) == 0 {
		p.index = 0
	} else {
		if newIndex >= len(p.queue) {
			newIndex = len(p.queue) - 1
		}
		p.index = newIndex
	}
	return p.persistAll(ctx)
}

// Reorder moves the entry at from to position to. The currently playing
// track stays current: the index follows the moved entry or shifts to make
// room for it.
func (p *Player) Reorder(ctx context.Context, from, to int) (PersistResult, bool) {
	if from < 0 || from >= len(p.queue) || to < 0 || to >= len(p.queue) {
		return Persisted, false
	}
	if from == to {
		return Persisted, true
	}

	entry := p.queue[from]
	p.queue = append(p.queue[:from], p.queue[from+1:]...)

	rest := make([]model.QueueEntry, 0, len(p.queue)+1)
	rest = append(rest, p.queue[:to]...)
	rest = append(rest, entry)
	rest = append(rest, p.queue[to:]...)
	p.queue = rest

	switch {
	case p.index == from:
		p.index = to
	case from < p.index && to >= p.index:
		p.index--
	case from > p.index && to <= p.index:
		p.index++
	}
	return p.persistAll(ctx), true
}

// ClearQueue empties the queue and resets the player to the terminal state.
func (p *Player) ClearQueue(ctx context.Context) PersistResult {
	p.queue = nil
	p.index = 0
	if err := p.store.Clear(ctx, p.userID); err != nil {
		logger.Warn("queue clear not persisted",
			logger.Int64("userId", p.userID), logger.ErrorField(err))
		return PersistFailed
	}
	return p.persistState(ctx)
}

// randomOtherIndex picks a uniformly random index different from the
// current one using crypto/rand. Caller guarantees len(queue) > 1.
func (p *Player) randomOtherIndex() int {
	n := int64(len(p.queue) - 1)
	r, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// rand.Reader failing is effectively unrecoverable; fall back to
		// the sequential neighbor rather than repeating the current track.
		return (p.index + 1) % len(p.queue)
	}
	pick := int(r.Int64())
	if pick >= p.index {
		pick++
	}
	return pick
}

func (p *Player) persistAll(ctx context.Context) PersistResult {
	result := Persisted
	if err := p.store.Save(ctx, p.userID, p.queue); err != nil {
		logger.Warn("queue not persisted, in-memory state still valid",
			logger.Int64("userId", p.userID), logger.ErrorField(err))
		result = PersistFailed
	}
	if err := p.store.SaveState(ctx, p.userID, p.Snapshot()); err != nil {
		logger.Warn("player state not persisted, in-memory state still valid",
			logger.Int64("userId", p.userID), logger.ErrorField(err))
		result = PersistFailed
	}
	return result
}

func (p *Player) persistState(ctx context.Context) PersistResult {
	if err := p.store.SaveState(ctx, p.userID, p.Snapshot()); err != nil {
		logger.Warn("player state not persisted, in-memory state still valid",
			logger.Int64("userId", p.userID), logger.ErrorField(err))
		return PersistFailed
	}
	return Persisted
}
