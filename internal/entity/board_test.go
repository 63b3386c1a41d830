package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

// placeFleet fills the board with the full five-ship set, one empty row
// between ships so no placement violates the spacing rule.
func placeFleet(t *testing.T, board *Board) {
	t.Helper()

	require.NoError(t, board.PlaceShip(ShipCarrier, 0, 0, true, false))
	require.NoError(t, board.PlaceShip(ShipBattleship, 2, 0, true, false))
	require.NoError(t, board.PlaceShip(ShipDestroyer, 4, 0, true, false))
	require.NoError(t, board.PlaceShip(ShipSubmarine, 6, 0, true, false))
	require.NoError(t, board.PlaceShip(ShipPatrol, 8, 0, true, false))
}

// sinkShip shoots every cell of a horizontal ship and returns the last result.
func sinkShip(t *testing.T, board *Board, row, col, length int) ShotResult {
	t.Helper()

	var result ShotResult
	var err error

	for i := 0; i < length; i++ {
		result, err = board.ProcessShot(row, col+i)
		require.NoError(t, err)
		require.True(t, result.IsHit)
	}

	return result
}

func TestBoard_PlaceShip(t *testing.T) {
	t.Run("marks cells and records the ship", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard()

		// When: a destroyer is placed vertically
		err := board.PlaceShip(ShipDestroyer, 3, 4, false, false)
		require.NoError(t, err)

		// Then: its three cells are ship cells and the record exists
		for i := 0; i < 3; i++ {
			assert.Equal(t, CellShip, board.Grid[3+i][4])
		}
		require.Len(t, board.Ships, 1)
		assert.Equal(t, 1, board.ShipsRemaining)
	})

	t.Run("rejects out of bounds coordinates", func(t *testing.T) {
		board := NewBoard()

		err := board.PlaceShip(ShipPatrol, -1, 0, true, false)
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)

		err = board.PlaceShip(ShipPatrol, 10, 0, true, false)
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)
	})

	t.Run("rejects ships extending beyond the board", func(t *testing.T) {
		board := NewBoard()

		// When: a carrier starts too far right / too far down
		err := board.PlaceShip(ShipCarrier, 0, 6, true, false)
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)

		err = board.PlaceShip(ShipCarrier, 6, 0, false, false)
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)

		// Then: a carrier ending exactly at the edge is fine
		require.NoError(t, board.PlaceShip(ShipCarrier, 0, 5, true, false))
	})

	t.Run("rejects overlap", func(t *testing.T) {
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipBattleship, 5, 2, true, false))

		err := board.PlaceShip(ShipDestroyer, 5, 3, false, false)
		require.ErrorIs(t, err, apperror.ErrShipOverlap)
	})

	t.Run("rejects adjacent ships", func(t *testing.T) {
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipBattleship, 5, 2, true, false))

		// diagonal contact counts as touching too
		err := board.PlaceShip(ShipPatrol, 4, 1, true, false)
		require.ErrorIs(t, err, apperror.ErrShipsTouching)

		err = board.PlaceShip(ShipPatrol, 6, 6, true, false)
		require.ErrorIs(t, err, apperror.ErrShipsTouching)
	})

	t.Run("allows adjacent ships when spacing rule is off", func(t *testing.T) {
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipBattleship, 5, 2, true, true))
		require.NoError(t, board.PlaceShip(ShipPatrol, 4, 1, true, true))
	})

	t.Run("rejects an identical duplicate placement", func(t *testing.T) {
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipSubmarine, 0, 0, true, false))

		err := board.PlaceShip(ShipSubmarine, 0, 0, true, false)
		require.ErrorIs(t, err, apperror.ErrDuplicateShip)
	})

	t.Run("rejects unknown ship types", func(t *testing.T) {
		board := NewBoard()

		err := board.PlaceShip(ShipType(0), 0, 0, true, false)
		require.ErrorIs(t, err, apperror.ErrUnknownShipType)

		err = board.PlaceShip(ShipType(6), 0, 0, true, false)
		require.ErrorIs(t, err, apperror.ErrUnknownShipType)
	})

	t.Run("rejects a sixth ship", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		err := board.PlaceShip(ShipPatrol, 8, 9, true, false)
		require.ErrorIs(t, err, apperror.ErrAllShipsPlaced)
	})
}

func TestBoard_ProcessShot(t *testing.T) {
	t.Run("miss marks the cell", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		result, err := board.ProcessShot(9, 9)
		require.NoError(t, err)

		assert.False(t, result.IsHit)
		assert.Equal(t, CellMiss, board.Grid[9][9])
	})

	t.Run("hit without sinking", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		result, err := board.ProcessShot(0, 0)
		require.NoError(t, err)

		assert.True(t, result.IsHit)
		assert.False(t, result.IsSunk)
		assert.Equal(t, CellHit, board.Grid[0][0])
		assert.Equal(t, MaxShips, board.ShipsRemaining)
	})

	t.Run("sinking reports the ship type", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		// When: the patrol boat's single cell is hit
		result, err := board.ProcessShot(8, 0)
		require.NoError(t, err)

		// Then: it sinks but the game goes on
		assert.True(t, result.IsHit)
		assert.True(t, result.IsSunk)
		assert.Equal(t, ShipPatrol, result.SunkType)
		assert.False(t, result.GameOver)
		assert.Equal(t, MaxShips-1, board.ShipsRemaining)
	})

	t.Run("hitting a sunk ship cell again is rejected", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		_, err := board.ProcessShot(8, 0)
		require.NoError(t, err)

		_, err = board.ProcessShot(8, 0)
		require.ErrorIs(t, err, apperror.ErrInvalidShot)
	})

	t.Run("repeated shot at a miss cell mutates nothing", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		_, err := board.ProcessShot(9, 9)
		require.NoError(t, err)

		before := *board
		_, err = board.ProcessShot(9, 9)
		require.ErrorIs(t, err, apperror.ErrInvalidShot)
		assert.Equal(t, before.Grid, board.Grid)
		assert.Equal(t, before.ShipsRemaining, board.ShipsRemaining)
	})

	t.Run("out of bounds shot is rejected", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		_, err := board.ProcessShot(10, 0)
		require.ErrorIs(t, err, apperror.ErrInvalidShot)

		_, err = board.ProcessShot(0, -1)
		require.ErrorIs(t, err, apperror.ErrInvalidShot)
	})

	t.Run("sinking the last ship ends the game", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		sinkShip(t, board, 0, 0, 5)
		sinkShip(t, board, 2, 0, 4)
		sinkShip(t, board, 4, 0, 3)
		sinkShip(t, board, 6, 0, 2)
		result := sinkShip(t, board, 8, 0, 1)

		assert.True(t, result.IsSunk)
		assert.True(t, result.GameOver)
		assert.Equal(t, 0, board.ShipsRemaining)
	})
}

func TestBoard_GridEncoding(t *testing.T) {
	t.Run("round trip reconstructs the fleet", func(t *testing.T) {
		// Given: a board with the full fleet and some mixed orientations
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipCarrier, 0, 0, false, false))
		require.NoError(t, board.PlaceShip(ShipBattleship, 0, 2, true, false))
		require.NoError(t, board.PlaceShip(ShipDestroyer, 2, 7, false, false))
		require.NoError(t, board.PlaceShip(ShipSubmarine, 9, 0, true, false))
		require.NoError(t, board.PlaceShip(ShipPatrol, 9, 9, true, false))

		// When: it is flattened and rebuilt
		grid := board.EncodeGrid()
		rebuilt, anomalies := BoardFromGrid(grid)

		// Then: the fleet comes back whole
		assert.Empty(t, anomalies)
		require.Len(t, rebuilt.Ships, MaxShips)
		assert.True(t, rebuilt.HasCompleteFleet())
		assert.Equal(t, board.Grid, rebuilt.Grid)
	})

	t.Run("hit and miss cells survive encoding", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)

		_, err := board.ProcessShot(9, 9)
		require.NoError(t, err)
		_, err = board.ProcessShot(8, 0)
		require.NoError(t, err)

		grid := board.EncodeGrid()
		assert.Equal(t, byte(gridMiss), grid[9*BoardSize+9])
		assert.Equal(t, byte(gridHit), grid[8*BoardSize+0])
	})

	t.Run("run of the wrong length is an anomaly", func(t *testing.T) {
		// Given: a grid claiming a destroyer that is only two cells long
		var grid [BoardSize * BoardSize]byte
		grid[0] = byte(ShipDestroyer)
		grid[1] = byte(ShipDestroyer)

		ships, anomalies := RebuildShipsFromGrid(grid)

		assert.Empty(t, ships)
		assert.NotEmpty(t, anomalies)
	})

	t.Run("single cell patrol boat is recognized", func(t *testing.T) {
		var grid [BoardSize * BoardSize]byte
		grid[5*BoardSize+5] = byte(ShipPatrol)

		ships, anomalies := RebuildShipsFromGrid(grid)

		assert.Empty(t, anomalies)
		require.Len(t, ships, 1)
		assert.Equal(t, ShipPatrol, ships[0].Type)
	})
}

func TestBoard_HasCompleteFleet(t *testing.T) {
	t.Run("full distinct set", func(t *testing.T) {
		board := NewBoard()
		placeFleet(t, board)
		assert.True(t, board.HasCompleteFleet())
	})

	t.Run("missing ships", func(t *testing.T) {
		board := NewBoard()
		require.NoError(t, board.PlaceShip(ShipCarrier, 0, 0, true, false))
		assert.False(t, board.HasCompleteFleet())
	})
}

func TestRestoreBoard(t *testing.T) {
	// Given: a played board with one sunk ship and a miss
	board := NewBoard()
	placeFleet(t, board)

	_, err := board.ProcessShot(8, 0)
	require.NoError(t, err)
	_, err = board.ProcessShot(9, 9)
	require.NoError(t, err)

	// When: it is restored from its ship records and encoded grid
	grid := board.EncodeGrid()
	restored := RestoreBoard(board.Ships, grid, board.ShipsRemaining)

	// Then: cells and tallies match the original
	assert.Equal(t, board.Grid, restored.Grid)
	assert.Equal(t, board.ShipsRemaining, restored.ShipsRemaining)
	assert.Equal(t, board.Ships, restored.Ships)
}
