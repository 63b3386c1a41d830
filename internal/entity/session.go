package entity

import (
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

const (
	StatePlacingShips = "placing_ships"
	StatePlaying      = "playing"
	StateFinished     = "finished"
)

const (
	FinishReasonAllShipsSunk = "all_ships_sunk"
	FinishReasonTimeout      = "timeout"
)

// GameSession is the canonical in-memory record of one two-player game.
// All mutation goes through its methods; each method takes the session's own
// lock so two racing shot attempts for the same turn cannot both succeed.
type GameSession struct {
	mu sync.Mutex

	ID           string    `json:"id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	Player1Name  string    `json:"player1_name"`
	Player2Name  string    `json:"player2_name"`
	State        string    `json:"state"`
	CurrentTurn  string    `json:"current_turn"`
	TurnStarted  time.Time `json:"turn_started"`
	Warned       bool      `json:"warned"`
	Board1       *Board    `json:"player1_board"`
	Board2       *Board    `json:"player2_board"`
	Ready1       bool      `json:"player1_ready"`
	Ready2       bool      `json:"player2_ready"`
	Winner       string    `json:"winner"`
	FinishReason string    `json:"finish_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewGameSession(id, player1ID, player1Name, player2ID, player2Name string) *GameSession {
	return &GameSession{
		ID:          id,
		Player1ID:   player1ID,
		Player2ID:   player2ID,
		Player1Name: player1Name,
		Player2Name: player2Name,
		State:       StatePlacingShips,
		Board1:      NewBoard(),
		Board2:      NewBoard(),
		CreatedAt:   time.Now(),
	}
}

func (that *GameSession) HasPlayer(playerID string) bool {
	return playerID == that.Player1ID || playerID == that.Player2ID
}

func (that *GameSession) OpponentOf(playerID string) string {
	if playerID == that.Player1ID {
		return that.Player2ID
	}
	return that.Player1ID
}

func (that *GameSession) PlayerName(playerID string) string {
	if playerID == that.Player1ID {
		return that.Player1Name
	}
	return that.Player2Name
}

func (that *GameSession) ownBoard(playerID string) *Board {
	if playerID == that.Player1ID {
		return that.Board1
	}
	return that.Board2
}

func (that *GameSession) opponentBoard(playerID string) *Board {
	if playerID == that.Player1ID {
		return that.Board2
	}
	return that.Board1
}

// PlaceShip places one ship for the player. The 5th successful placement
// marks the player ready; when both are ready the session transitions to
// playing and the turn clock starts for player 1. Returns whether that
// transition happened on this call.
func (that *GameSession) PlaceShip(playerID string, shipType ShipType, row, col int, horizontal, allowTouching bool) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.HasPlayer(playerID) {
		return false, apperror.ErrNotYourGame
	}

	if that.State != StatePlacingShips {
		return false, fmt.Errorf("%w: %s", apperror.ErrWrongPhase, that.State)
	}

	board := that.ownBoard(playerID)
	if err := board.PlaceShip(shipType, row, col, horizontal, allowTouching); err != nil {
		return false, err
	}

	if len(board.Ships) == MaxShips {
		that.markReadyLocked(playerID)
	}

	return that.startIfReadyLocked(), nil
}

// SubmitBoard replaces the player's board with a fully pre-placed one (the
// player_ready path) and marks the player ready. The board must carry the
// complete fleet.
func (that *GameSession) SubmitBoard(playerID string, board *Board) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.HasPlayer(playerID) {
		return false, apperror.ErrNotYourGame
	}

	if that.State != StatePlacingShips {
		return false, fmt.Errorf("%w: %s", apperror.ErrWrongPhase, that.State)
	}

	if !board.HasCompleteFleet() {
		return false, apperror.ErrFleetIncomplete
	}

	if playerID == that.Player1ID {
		that.Board1 = board
	} else {
		that.Board2 = board
	}

	that.markReadyLocked(playerID)

	return that.startIfReadyLocked(), nil
}

func (that *GameSession) markReadyLocked(playerID string) {
	if playerID == that.Player1ID {
		that.Ready1 = true
	} else {
		that.Ready2 = true
	}
}

func (that *GameSession) startIfReadyLocked() bool {
	if !that.Ready1 || !that.Ready2 || that.State != StatePlacingShips {
		return false
	}

	that.State = StatePlaying
	that.CurrentTurn = that.Player1ID
	that.TurnStarted = time.Now()
	that.Warned = false

	return true
}

// ApplyShot processes one shot by the player at the opponent's board.
// A non-terminal shot switches the turn and resets the turn clock before the
// method returns; a terminal shot finishes the session with the shooter as
// winner and leaves the turn untouched. Invalid shots mutate nothing.
func (that *GameSession) ApplyShot(playerID string, row, col int) (ShotResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.HasPlayer(playerID) {
		return ShotResult{Row: row, Col: col}, apperror.ErrNotYourGame
	}

	if that.State != StatePlaying {
		if that.State == StateFinished {
			return ShotResult{Row: row, Col: col}, apperror.ErrGameFinished
		}
		return ShotResult{Row: row, Col: col}, apperror.ErrGameNotStarted
	}

	if that.CurrentTurn != playerID {
		return ShotResult{Row: row, Col: col}, apperror.ErrNotYourTurn
	}

	result, err := that.opponentBoard(playerID).ProcessShot(row, col)
	if err != nil {
		return result, err
	}

	if result.GameOver {
		that.State = StateFinished
		that.Winner = playerID
		that.FinishReason = FinishReasonAllShipsSunk
		return result, nil
	}

	that.CurrentTurn = that.OpponentOf(playerID)
	that.TurnStarted = time.Now()
	that.Warned = false

	return result, nil
}

// TurnClockState - what the timeout monitor decided for one session.
type TurnClockState struct {
	Warn             bool
	SecondsRemaining int
	TimedOut         bool
	Winner           string
	Loser            string
}

// CheckTurnClock advances the turn-clock state machine for the monitor: a
// one-time warning once remaining time drops to warnAt, then a timeout that
// finishes the session with the non-current player as winner.
func (that *GameSession) CheckTurnClock(now time.Time, limit, warnAt time.Duration) TurnClockState {
	that.mu.Lock()
	defer that.mu.Unlock()

	var state TurnClockState

	if that.State != StatePlaying {
		return state
	}

	elapsed := now.Sub(that.TurnStarted)

	if elapsed > limit {
		that.State = StateFinished
		that.Winner = that.OpponentOf(that.CurrentTurn)
		that.FinishReason = FinishReasonTimeout

		state.TimedOut = true
		state.Winner = that.Winner
		state.Loser = that.OpponentOf(that.Winner)

		return state
	}

	remaining := limit - elapsed
	if remaining <= warnAt && !that.Warned {
		that.Warned = true
		state.Warn = true
		state.SecondsRemaining = int(remaining / time.Second)
	}

	return state
}

func (that *GameSession) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.State == StateFinished
}

func (that *GameSession) IsActive() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.State != StateFinished
}

// Snapshot returns a deep copy safe to serialize while other workers keep
// mutating the session.
func (that *GameSession) Snapshot() *GameSession {
	that.mu.Lock()
	defer that.mu.Unlock()

	return &GameSession{
		ID:           that.ID,
		Player1ID:    that.Player1ID,
		Player2ID:    that.Player2ID,
		Player1Name:  that.Player1Name,
		Player2Name:  that.Player2Name,
		State:        that.State,
		CurrentTurn:  that.CurrentTurn,
		TurnStarted:  that.TurnStarted,
		Warned:       that.Warned,
		Board1:       copyBoard(that.Board1),
		Board2:       copyBoard(that.Board2),
		Ready1:       that.Ready1,
		Ready2:       that.Ready2,
		Winner:       that.Winner,
		FinishReason: that.FinishReason,
		CreatedAt:    that.CreatedAt,
	}
}

func copyBoard(board *Board) *Board {
	if board == nil {
		return nil
	}

	copied := *board
	copied.Ships = append([]Ship(nil), board.Ships...)

	return &copied
}
