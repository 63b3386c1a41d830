package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

// QueueEntry is one waiting player. It carries no connection handle: whoever
// consumes a match resolves the player's current connection at match time, so
// a reconnect while waiting does not strand the notification on a dead socket.
type QueueEntry struct {
	UserID   string
	Username string
	Rating   int
	GameMode string
	JoinedAt time.Time
}

// MatchFunc is invoked once per matched pair, outside the queue lock.
type MatchFunc func(a, b QueueEntry)

// MatchQueue holds players waiting for an opponent. Matching is greedy in
// insertion order: a new entry pairs with the earliest waiting player whose
// rating is within tolerance and whose game mode matches.
type MatchQueue struct {
	logger    *slog.Logger
	capacity  int
	tolerance int

	onMatch MatchFunc

	mu      sync.Mutex
	entries []QueueEntry
}

func NewMatchQueue(logger *slog.Logger, capacity, tolerance int) *MatchQueue {
	return &MatchQueue{
		logger:    logger.With("component", "matchqueue"),
		capacity:  capacity,
		tolerance: tolerance,
	}
}

// OnMatch sets the pair callback. Must be set before the first Enqueue.
func (that *MatchQueue) OnMatch(fn MatchFunc) {
	that.onMatch = fn
}

// Enqueue adds a player and immediately tries to pair them. The pair
// callback fires after the lock is released so it may re-enter the queue.
func (that *MatchQueue) Enqueue(entry QueueEntry) error {
	type pair struct{ a, b QueueEntry }

	var matched []pair

	that.mu.Lock()

	for _, existing := range that.entries {
		if existing.UserID == entry.UserID {
			that.mu.Unlock()
			return apperror.ErrAlreadyQueued
		}
	}

	if len(that.entries) >= that.capacity {
		that.mu.Unlock()
		return apperror.ErrQueueFull
	}

	entry.JoinedAt = time.Now()
	that.entries = append(that.entries, entry)

	// Pair in insertion order until no compatible pair remains. A single
	// enqueue can only create one new pair, but the loop keeps the scan
	// honest if tolerance or mode rules ever loosen mid-flight.
	for {
		i, j, ok := that.findPairLocked()
		if !ok {
			break
		}

		matched = append(matched, pair{a: that.entries[i], b: that.entries[j]})
		that.removeAtLocked(j)
		that.removeAtLocked(i)
	}

	that.mu.Unlock()

	for _, m := range matched {
		that.logger.Info("matched players",
			"player1", m.a.UserID, "player2", m.b.UserID,
			"rating1", m.a.Rating, "rating2", m.b.Rating)
		that.onMatch(m.a, m.b)
	}

	return nil
}

func (that *MatchQueue) findPairLocked() (int, int, bool) {
	for i := 0; i < len(that.entries); i++ {
		for j := i + 1; j < len(that.entries); j++ {
			if that.compatibleLocked(that.entries[i], that.entries[j]) {
				return i, j, true
			}
		}
	}

	return 0, 0, false
}

func (that *MatchQueue) compatibleLocked(a, b QueueEntry) bool {
	if a.GameMode != b.GameMode {
		return false
	}

	diff := a.Rating - b.Rating
	if diff < 0 {
		diff = -diff
	}

	return diff <= that.tolerance
}

func (that *MatchQueue) removeAtLocked(i int) {
	that.entries = append(that.entries[:i], that.entries[i+1:]...)
}

// Dequeue removes a waiting player. Removing an absent player is a no-op.
func (that *MatchQueue) Dequeue(userID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, entry := range that.entries {
		if entry.UserID == userID {
			that.removeAtLocked(i)
			return
		}
	}
}

func (that *MatchQueue) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.entries)
}
