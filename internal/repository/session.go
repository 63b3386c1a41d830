package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type SessionRepository interface {
	Save(ctx context.Context, session *entity.GameSession) error
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	DeleteByID(ctx context.Context, id string) error
	SetPlayerSession(ctx context.Context, playerID, gameID string) error
	GetPlayerSession(ctx context.Context, playerID string) (string, error)
	ClearPlayerSession(ctx context.Context, playerID string) error
}

// boardDoc is the persisted board form: the length-encoded grid plus the
// ship records. Records carry hit counts the grid alone cannot express; the
// grid keeps the document auditable and reconstructable when records are
// missing.
type boardDoc struct {
	Grid           []byte        `json:"grid"`
	Ships          []entity.Ship `json:"ships,omitempty"`
	ShipsRemaining int           `json:"ships_remaining"`
}

type sessionDoc struct {
	ID           string    `json:"id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	Player1Name  string    `json:"player1_name"`
	Player2Name  string    `json:"player2_name"`
	State        string    `json:"state"`
	CurrentTurn  string    `json:"current_turn"`
	TurnStarted  time.Time `json:"turn_started"`
	Warned       bool      `json:"warned"`
	Board1       boardDoc  `json:"player1_board"`
	Board2       boardDoc  `json:"player2_board"`
	Ready1       bool      `json:"player1_ready"`
	Ready2       bool      `json:"player2_ready"`
	Winner       string    `json:"winner"`
	FinishReason string    `json:"finish_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type dbSession struct {
	logger *slog.Logger
	client *redis.Client
}

func NewSessionRepository(logger *slog.Logger, client *redis.Client) SessionRepository {
	return &dbSession{
		logger: logger.With("component", "session-repository"),
		client: client,
	}
}

func encodeBoard(board *entity.Board) boardDoc {
	if board == nil {
		return boardDoc{}
	}

	grid := board.EncodeGrid()

	return boardDoc{
		Grid:           grid[:],
		Ships:          board.Ships,
		ShipsRemaining: board.ShipsRemaining,
	}
}

func (that *dbSession) decodeBoard(doc boardDoc, gameID string) *entity.Board {
	var grid [entity.BoardSize * entity.BoardSize]byte
	copy(grid[:], doc.Grid)

	if len(doc.Ships) > 0 {
		return entity.RestoreBoard(doc.Ships, grid, doc.ShipsRemaining)
	}

	board, anomalies := entity.BoardFromGrid(grid)
	for _, anomaly := range anomalies {
		that.logger.Warn("board reconstructed with anomaly", "gameID", gameID, "anomaly", anomaly)
	}

	return board
}

// Save persists a snapshot of the session under its game key.
func (that *dbSession) Save(ctx context.Context, session *entity.GameSession) error {
	snapshot := session.Snapshot()

	doc := sessionDoc{
		ID:           snapshot.ID,
		Player1ID:    snapshot.Player1ID,
		Player2ID:    snapshot.Player2ID,
		Player1Name:  snapshot.Player1Name,
		Player2Name:  snapshot.Player2Name,
		State:        snapshot.State,
		CurrentTurn:  snapshot.CurrentTurn,
		TurnStarted:  snapshot.TurnStarted,
		Warned:       snapshot.Warned,
		Board1:       encodeBoard(snapshot.Board1),
		Board2:       encodeBoard(snapshot.Board2),
		Ready1:       snapshot.Ready1,
		Ready2:       snapshot.Ready2,
		Winner:       snapshot.Winner,
		FinishReason: snapshot.FinishReason,
		CreatedAt:    snapshot.CreatedAt,
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sessionKey := "session:" + doc.ID
	if err = that.client.Set(ctx, sessionKey, docJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.GameSession, error) {
	sessionKey := "session:" + id

	response, err := that.client.Get(ctx, sessionKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}

	var doc sessionDoc
	if err = json.Unmarshal([]byte(response), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := entity.NewGameSession(doc.ID, doc.Player1ID, doc.Player1Name, doc.Player2ID, doc.Player2Name)
	session.State = doc.State
	session.CurrentTurn = doc.CurrentTurn
	session.TurnStarted = doc.TurnStarted
	session.Warned = doc.Warned
	session.Board1 = that.decodeBoard(doc.Board1, doc.ID)
	session.Board2 = that.decodeBoard(doc.Board2, doc.ID)
	session.Ready1 = doc.Ready1
	session.Ready2 = doc.Ready2
	session.Winner = doc.Winner
	session.FinishReason = doc.FinishReason
	session.CreatedAt = doc.CreatedAt

	return session, nil
}

func (that *dbSession) DeleteByID(ctx context.Context, id string) error {
	sessionKey := "session:" + id

	if err := that.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// SetPlayerSession points the player's active-game index at a session so a
// reconnecting player can be routed back into it.
func (that *dbSession) SetPlayerSession(ctx context.Context, playerID, gameID string) error {
	playerKey := "player-session:" + playerID

	if err := that.client.Set(ctx, playerKey, gameID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set player session index: %w", err)
	}

	return nil
}

func (that *dbSession) GetPlayerSession(ctx context.Context, playerID string) (string, error) {
	playerKey := "player-session:" + playerID

	gameID, err := that.client.Get(ctx, playerKey).Result()

	if errors.Is(err, redis.Nil) {
		return "", apperror.ErrGameNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get player session index: %w", err)
	}

	return gameID, nil
}

func (that *dbSession) ClearPlayerSession(ctx context.Context, playerID string) error {
	playerKey := "player-session:" + playerID

	if err := that.client.Del(ctx, playerKey).Err(); err != nil {
		return fmt.Errorf("failed to clear player session index: %w", err)
	}

	return nil
}
