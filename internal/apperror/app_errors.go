package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameNotStarted   = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrNotYourGame      = errors.New("player is not part of this game")
	ErrInvalidShot      = errors.New("not a valid shot")
	ErrGameNotFound     = errors.New("game not found")
	ErrWrongPhase       = errors.New("action not allowed in current game phase")

	ErrOutOfBounds     = errors.New("placement out of bounds")
	ErrShipOverlap     = errors.New("ship overlaps with an existing ship")
	ErrShipsTouching   = errors.New("ship too close to another ship")
	ErrDuplicateShip   = errors.New("ship already placed at this position")
	ErrAllShipsPlaced  = errors.New("maximum ships already placed")
	ErrUnknownShipType = errors.New("unknown ship type")
	ErrFleetIncomplete = errors.New("fleet is incomplete")

	ErrAlreadyQueued = errors.New("player already in queue")
	ErrQueueFull     = errors.New("matchmaking queue is full")

	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrChallengeNotPending = errors.New("challenge is not pending")
	ErrChallengeExists     = errors.New("pending challenge already exists for this pair")
	ErrChallengeTableFull  = errors.New("challenge table is full")

	ErrRegistryFull = errors.New("connection registry is full")

	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrWrongCredentials = errors.New("wrong username or password")
	ErrInvalidUsername  = errors.New("username must be 3-20 characters")
	ErrInvalidPassword  = errors.New("password must be 6-100 characters")
)
