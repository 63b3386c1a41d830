package game

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.GameSession
	byPlayer map[string]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*entity.GameSession),
		byPlayer: make(map[string]string),
	}
}

func (that *fakeSessionRepo) Save(_ context.Context, session *entity.GameSession) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sessions[session.ID] = session.Snapshot()
	return nil
}

func (that *fakeSessionRepo) GetByID(_ context.Context, id string) (*entity.GameSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	session, ok := that.sessions[id]
	if !ok {
		return nil, apperror.ErrGameNotFound
	}
	return session.Snapshot(), nil
}

func (that *fakeSessionRepo) SetPlayerSession(_ context.Context, playerID, gameID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.byPlayer[playerID] = gameID
	return nil
}

func (that *fakeSessionRepo) GetPlayerSession(_ context.Context, playerID string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	gameID, ok := that.byPlayer[playerID]
	if !ok {
		return "", apperror.ErrGameNotFound
	}
	return gameID, nil
}

func (that *fakeSessionRepo) ClearPlayerSession(_ context.Context, playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.byPlayer, playerID)
	return nil
}

type fakeRatings struct {
	mu      sync.Mutex
	updates [][2]string
}

func (that *fakeRatings) UpdateAfterMatch(_ context.Context, winnerID, loserID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.updates = append(that.updates, [2]string{winnerID, loserID})
	return nil
}

func newTestStore() (*Store, *fakeSessionRepo, *fakeRatings) {
	repo := newFakeSessionRepo()
	ratings := &fakeRatings{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewStore(logger, repo, ratings, 60*time.Second, 10*time.Second, false), repo, ratings
}

func fleetGrid(t *testing.T) [entity.BoardSize * entity.BoardSize]byte {
	t.Helper()

	board := entity.NewBoard()
	require.NoError(t, board.PlaceShip(entity.ShipCarrier, 0, 0, true, false))
	require.NoError(t, board.PlaceShip(entity.ShipBattleship, 2, 0, true, false))
	require.NoError(t, board.PlaceShip(entity.ShipDestroyer, 4, 0, true, false))
	require.NoError(t, board.PlaceShip(entity.ShipSubmarine, 6, 0, true, false))
	require.NoError(t, board.PlaceShip(entity.ShipPatrol, 8, 0, true, false))

	return board.EncodeGrid()
}

// startPlaying creates a session and submits both fleets.
func startPlaying(t *testing.T, store *Store) *entity.GameSession {
	t.Helper()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "p1", "alice", "p2", "bob")
	require.NoError(t, err)

	started, _, err := store.SubmitBoard(ctx, session.ID, "p1", fleetGrid(t))
	require.NoError(t, err)
	require.False(t, started)

	started, _, err = store.SubmitBoard(ctx, session.ID, "p2", fleetGrid(t))
	require.NoError(t, err)
	require.True(t, started)

	return session
}

func TestStore_CreateSession(t *testing.T) {
	store, repo, _ := newTestStore()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "p1", "alice", "p2", "bob")
	require.NoError(t, err)

	// persisted and indexed for both players
	_, err = repo.GetByID(ctx, session.ID)
	require.NoError(t, err)

	for _, playerID := range []string{"p1", "p2"} {
		gameID, err := repo.GetPlayerSession(ctx, playerID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, gameID)
	}
}

func TestStore_FindByPlayer(t *testing.T) {
	ctx := context.Background()

	t.Run("from the live table", func(t *testing.T) {
		store, _, _ := newTestStore()
		session, err := store.CreateSession(ctx, "p1", "alice", "p2", "bob")
		require.NoError(t, err)

		found, err := store.FindByPlayer(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, session.ID, found.ID)
	})

	t.Run("falls back to the repository after a restart", func(t *testing.T) {
		// Given: a session persisted by one store instance
		store, repo, _ := newTestStore()
		session, err := store.CreateSession(ctx, "p1", "alice", "p2", "bob")
		require.NoError(t, err)

		// When: a fresh store with the same repository looks it up
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		restarted := NewStore(logger, repo, &fakeRatings{}, 60*time.Second, 10*time.Second, false)

		found, err := restarted.FindByPlayer(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, session.ID, found.ID)

		// Then: the reloaded session is promoted into the live table
		again, err := restarted.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Same(t, found, again)
	})

	t.Run("no active game", func(t *testing.T) {
		store, _, _ := newTestStore()

		_, err := store.FindByPlayer(ctx, "nobody")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestStore_PlaceShip(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "p1", "alice", "p2", "bob")
	require.NoError(t, err)

	started, _, err := store.PlaceShip(ctx, session.ID, "p1", entity.ShipCarrier, 0, 0, true)
	require.NoError(t, err)
	assert.False(t, started)

	// invalid placements surface their reason
	_, _, err = store.PlaceShip(ctx, session.ID, "p1", entity.ShipCarrier, 0, 0, true)
	require.ErrorIs(t, err, apperror.ErrDuplicateShip)
}

func TestStore_ProcessShot(t *testing.T) {
	ctx := context.Background()

	t.Run("normal shot persists and plays on", func(t *testing.T) {
		store, repo, ratings := newTestStore()
		session := startPlaying(t, store)

		result, _, err := store.ProcessShot(ctx, session.ID, "p1", 9, 9)
		require.NoError(t, err)
		assert.False(t, result.IsHit)

		saved, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "p2", saved.CurrentTurn)
		assert.Empty(t, ratings.updates)
	})

	t.Run("winning shot settles the game", func(t *testing.T) {
		store, repo, ratings := newTestStore()
		session := startPlaying(t, store)

		// p1 sinks everything; p2 wastes shots in the far corner
		targets := []struct{ row, col, length int }{
			{0, 0, 5}, {2, 0, 4}, {4, 0, 3}, {6, 0, 2}, {8, 0, 1},
		}

		answer := 0
		var result entity.ShotResult
		for _, target := range targets {
			for i := 0; i < target.length; i++ {
				var err error
				result, _, err = store.ProcessShot(ctx, session.ID, "p1", target.row, target.col+i)
				require.NoError(t, err)

				if result.GameOver {
					break
				}

				_, _, err = store.ProcessShot(ctx, session.ID, "p2", answer%10, 9-answer/10)
				require.NoError(t, err)
				answer++
			}
		}

		require.True(t, result.GameOver)

		// ratings moved once, indexes cleared, session out of the live table
		require.Len(t, ratings.updates, 1)
		assert.Equal(t, [2]string{"p1", "p2"}, ratings.updates[0])

		_, err := repo.GetPlayerSession(ctx, "p1")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)

		_, err = store.FindByPlayer(ctx, "p1")
		require.ErrorIs(t, err, apperror.ErrGameNotFound)

		// the finished record survives for the books
		saved, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StateFinished, saved.State)
		assert.Equal(t, "p1", saved.Winner)
	})

	t.Run("unknown game", func(t *testing.T) {
		store, _, _ := newTestStore()

		_, _, err := store.ProcessShot(ctx, "no-such-game", "p1", 0, 0)
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestStore_CheckTurnClocks(t *testing.T) {
	ctx := context.Background()

	t.Run("warns once as the clock runs low", func(t *testing.T) {
		store, _, _ := newTestStore()
		session := startPlaying(t, store)

		var warnings []int
		store.OnTurnWarning(func(_ *entity.GameSession, secondsRemaining int) {
			warnings = append(warnings, secondsRemaining)
		})
		store.OnTimeout(func(*entity.GameSession, string, string) {
			t.Fatal("clock should not have expired")
		})

		deadline := session.TurnStarted.Add(55 * time.Second)
		store.CheckTurnClocks(ctx, deadline)
		store.CheckTurnClocks(ctx, deadline.Add(time.Second))

		require.Len(t, warnings, 1)
		assert.LessOrEqual(t, warnings[0], 10)
	})

	t.Run("expiry finishes the game for the waiting player", func(t *testing.T) {
		store, repo, ratings := newTestStore()
		session := startPlaying(t, store)

		var timedOut [][2]string
		store.OnTimeout(func(_ *entity.GameSession, winnerID, loserID string) {
			timedOut = append(timedOut, [2]string{winnerID, loserID})
		})

		store.CheckTurnClocks(ctx, session.TurnStarted.Add(61*time.Second))

		// p1 held the first turn and ran out of time
		require.Len(t, timedOut, 1)
		assert.Equal(t, [2]string{"p2", "p1"}, timedOut[0])

		require.Len(t, ratings.updates, 1)
		assert.Equal(t, [2]string{"p2", "p1"}, ratings.updates[0])

		saved, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StateFinished, saved.State)
		assert.Equal(t, entity.FinishReasonTimeout, saved.FinishReason)
	})
}
