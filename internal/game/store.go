package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type sessionRepository interface {
	Save(ctx context.Context, session *entity.GameSession) error
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	SetPlayerSession(ctx context.Context, playerID, gameID string) error
	GetPlayerSession(ctx context.Context, playerID string) (string, error)
	ClearPlayerSession(ctx context.Context, playerID string) error
}

type ratingUpdater interface {
	UpdateAfterMatch(ctx context.Context, winnerID, loserID string) error
}

// WarningFunc is invoked once per turn when the clock runs low.
type WarningFunc func(session *entity.GameSession, secondsRemaining int)

// TimeoutFunc is invoked when a turn clock expires and the session finishes.
type TimeoutFunc func(session *entity.GameSession, winnerID, loserID string)

// Store keeps the live game sessions, persists them through the repository
// and drives the turn-clock monitor. Persistence is best effort: a failed
// save is logged, never surfaced to the players mid-game.
type Store struct {
	logger  *slog.Logger
	repo    sessionRepository
	ratings ratingUpdater

	turnLimit     time.Duration
	turnWarning   time.Duration
	allowTouching bool

	onTurnWarning WarningFunc
	onTimeout     TimeoutFunc

	mu   sync.RWMutex
	live map[string]*entity.GameSession
}

func NewStore(logger *slog.Logger, repo sessionRepository, ratings ratingUpdater, turnLimit, turnWarning time.Duration, allowTouching bool) *Store {
	return &Store{
		logger:        logger.With("component", "game-store"),
		repo:          repo,
		ratings:       ratings,
		turnLimit:     turnLimit,
		turnWarning:   turnWarning,
		allowTouching: allowTouching,
		live:          make(map[string]*entity.GameSession),
	}
}

// OnTurnWarning sets the low-clock callback. Must be set before Run starts.
func (that *Store) OnTurnWarning(fn WarningFunc) {
	that.onTurnWarning = fn
}

// OnTimeout sets the clock-expiry callback. Must be set before Run starts.
func (that *Store) OnTimeout(fn TimeoutFunc) {
	that.onTimeout = fn
}

// CreateSession starts a new game between two matched players.
func (that *Store) CreateSession(ctx context.Context, player1ID, player1Name, player2ID, player2Name string) (*entity.GameSession, error) {
	session := entity.NewGameSession(uuid.New().String(), player1ID, player1Name, player2ID, player2Name)

	that.mu.Lock()
	that.live[session.ID] = session
	that.mu.Unlock()

	that.persist(ctx, session)

	for _, playerID := range []string{player1ID, player2ID} {
		if err := that.repo.SetPlayerSession(ctx, playerID, session.ID); err != nil {
			that.logger.Error("failed to index player session", "gameID", session.ID, "playerID", playerID, "error", err)
		}
	}

	that.logger.Info("created game session", "gameID", session.ID, "player1", player1ID, "player2", player2ID)

	return session, nil
}

// Get returns the live session, falling back to the repository and promoting
// the reloaded session into the live table.
func (that *Store) Get(ctx context.Context, gameID string) (*entity.GameSession, error) {
	that.mu.RLock()
	session, ok := that.live[gameID]
	that.mu.RUnlock()

	if ok {
		return session, nil
	}

	session, err := that.repo.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	that.mu.Lock()
	// another goroutine may have reloaded it first; keep the winner
	if existing, exists := that.live[gameID]; exists {
		session = existing
	} else if session.IsActive() {
		that.live[gameID] = session
	}
	that.mu.Unlock()

	return session, nil
}

// FindByPlayer returns the active session a player belongs to, if any.
func (that *Store) FindByPlayer(ctx context.Context, playerID string) (*entity.GameSession, error) {
	that.mu.RLock()
	for _, session := range that.live {
		if session.HasPlayer(playerID) && session.IsActive() {
			that.mu.RUnlock()
			return session, nil
		}
	}
	that.mu.RUnlock()

	gameID, err := that.repo.GetPlayerSession(ctx, playerID)
	if err != nil {
		return nil, err
	}

	session, err := that.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if session.IsFinished() {
		return nil, apperror.ErrGameNotFound
	}

	return session, nil
}

// PlaceShip places one ship and reports whether this placement started the
// playing phase.
func (that *Store) PlaceShip(ctx context.Context, gameID, playerID string, shipType entity.ShipType, row, col int, horizontal bool) (bool, *entity.GameSession, error) {
	session, err := that.Get(ctx, gameID)
	if err != nil {
		return false, nil, err
	}

	started, err := session.PlaceShip(playerID, shipType, row, col, horizontal, that.allowTouching)
	if err != nil {
		return false, session, err
	}

	that.persist(ctx, session)

	return started, session, nil
}

// SubmitBoard accepts a fully pre-placed board in its length-encoded form
// and reports whether it started the playing phase.
func (that *Store) SubmitBoard(ctx context.Context, gameID, playerID string, grid [entity.BoardSize * entity.BoardSize]byte) (bool, *entity.GameSession, error) {
	session, err := that.Get(ctx, gameID)
	if err != nil {
		return false, nil, err
	}

	board, anomalies := entity.BoardFromGrid(grid)
	for _, anomaly := range anomalies {
		that.logger.Warn("submitted board anomaly", "gameID", gameID, "playerID", playerID, "anomaly", anomaly)
	}

	started, err := session.SubmitBoard(playerID, board)
	if err != nil {
		return false, session, err
	}

	that.persist(ctx, session)

	return started, session, nil
}

// ProcessShot applies one shot. When the shot finishes the game the session
// is settled: ratings move, player indexes clear, the live entry drops.
func (that *Store) ProcessShot(ctx context.Context, gameID, playerID string, row, col int) (entity.ShotResult, *entity.GameSession, error) {
	session, err := that.Get(ctx, gameID)
	if err != nil {
		return entity.ShotResult{Row: row, Col: col}, nil, err
	}

	result, err := session.ApplyShot(playerID, row, col)
	if err != nil {
		return result, session, err
	}

	if result.GameOver {
		that.settle(ctx, session, playerID, session.OpponentOf(playerID))
	}

	that.persist(ctx, session)

	return result, session, nil
}

// CheckTurnClocks advances every live turn clock once. Callbacks fire after
// each session's own lock is released.
func (that *Store) CheckTurnClocks(ctx context.Context, now time.Time) {
	that.mu.RLock()
	sessions := make([]*entity.GameSession, 0, len(that.live))
	for _, session := range that.live {
		sessions = append(sessions, session)
	}
	that.mu.RUnlock()

	for _, session := range sessions {
		state := session.CheckTurnClock(now, that.turnLimit, that.turnWarning)

		if state.Warn && that.onTurnWarning != nil {
			that.onTurnWarning(session, state.SecondsRemaining)
		}

		if !state.TimedOut {
			continue
		}

		that.logger.Info("turn clock expired", "gameID", session.ID, "winner", state.Winner, "loser", state.Loser)

		that.settle(ctx, session, state.Winner, state.Loser)
		that.persist(ctx, session)

		if that.onTimeout != nil {
			that.onTimeout(session, state.Winner, state.Loser)
		}
	}
}

// Run drives the turn-clock monitor until ctx is done.
func (that *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			that.CheckTurnClocks(ctx, now)
		}
	}
}

// settle finalizes a finished session: ratings, player indexes, live table.
func (that *Store) settle(ctx context.Context, session *entity.GameSession, winnerID, loserID string) {
	if err := that.ratings.UpdateAfterMatch(ctx, winnerID, loserID); err != nil {
		that.logger.Error("failed to update ratings", "gameID", session.ID, "error", err)
	}

	for _, playerID := range []string{winnerID, loserID} {
		if err := that.repo.ClearPlayerSession(ctx, playerID); err != nil {
			that.logger.Error("failed to clear player session index", "gameID", session.ID, "playerID", playerID, "error", err)
		}
	}

	that.mu.Lock()
	delete(that.live, session.ID)
	that.mu.Unlock()
}

func (that *Store) persist(ctx context.Context, session *entity.GameSession) {
	if err := that.repo.Save(ctx, session); err != nil && !errors.Is(err, context.Canceled) {
		that.logger.Error("failed to persist session", "gameID", session.ID, "error", err)
	}
}
