package entity

import (
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

const (
	BoardSize = 10
	MaxShips  = 5
)

// CellState - state of one board cell.
type CellState int32

const (
	CellWater CellState = iota
	CellShip
	CellHit
	CellMiss
)

// ShipType - the numeric value of a ship type equals its length in cells.
// Canonical table: Carrier 5, Battleship 4, Destroyer 3, Submarine 2, Patrol 1.
type ShipType int32

const (
	ShipPatrol     ShipType = 1
	ShipSubmarine  ShipType = 2
	ShipDestroyer  ShipType = 3
	ShipBattleship ShipType = 4
	ShipCarrier    ShipType = 5
)

// Grid bytes above the ship-length range, used in the wire/persisted board
// encoding where ship cells carry their length.
const (
	gridHit  = 12
	gridMiss = 13
)

func (that ShipType) Length() int {
	if that < ShipPatrol || that > ShipCarrier {
		return 0
	}
	return int(that)
}

func (that ShipType) String() string {
	switch that {
	case ShipCarrier:
		return "Carrier"
	case ShipBattleship:
		return "Battleship"
	case ShipDestroyer:
		return "Destroyer"
	case ShipSubmarine:
		return "Submarine"
	case ShipPatrol:
		return "Patrol Boat"
	default:
		return "Unknown"
	}
}

type Ship struct {
	Type       ShipType `json:"type"`
	Row        int      `json:"row"`
	Col        int      `json:"col"`
	Horizontal bool     `json:"horizontal"`
	Hits       int      `json:"hits"`
	Sunk       bool     `json:"sunk"`
}

// cell returns the board coordinate of the i-th cell of the ship.
func (that *Ship) cell(i int) (int, int) {
	if that.Horizontal {
		return that.Row, that.Col + i
	}
	return that.Row + i, that.Col
}

type Board struct {
	Grid           [BoardSize][BoardSize]CellState `json:"grid"`
	Ships          []Ship                          `json:"ships"`
	ShipsRemaining int                             `json:"ships_remaining"`
}

// ShotResult - outcome of one shot at a board.
type ShotResult struct {
	Row      int
	Col      int
	IsHit    bool
	IsSunk   bool
	SunkType ShipType
	GameOver bool
}

func NewBoard() *Board {
	return &Board{}
}

func inBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// ValidatePlacement checks bounds, fit, overlap and (unless allowTouching)
// the 8-neighborhood spacing rule for a ship of the given length.
func (that *Board) ValidatePlacement(row, col, length int, horizontal, allowTouching bool) error {
	if !inBounds(row, col) {
		return fmt.Errorf("%w: (%d, %d)", apperror.ErrOutOfBounds, row, col)
	}

	if horizontal && col+length > BoardSize {
		return fmt.Errorf("%w: ship extends beyond board horizontally", apperror.ErrOutOfBounds)
	}

	if !horizontal && row+length > BoardSize {
		return fmt.Errorf("%w: ship extends beyond board vertically", apperror.ErrOutOfBounds)
	}

	for i := 0; i < length; i++ {
		checkRow, checkCol := row, col+i
		if !horizontal {
			checkRow, checkCol = row+i, col
		}

		if that.Grid[checkRow][checkCol] == CellShip {
			return fmt.Errorf("%w at (%d, %d)", apperror.ErrShipOverlap, checkRow, checkCol)
		}

		if allowTouching {
			continue
		}

		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				adjRow, adjCol := checkRow+dr, checkCol+dc
				if inBounds(adjRow, adjCol) && that.Grid[adjRow][adjCol] == CellShip {
					return apperror.ErrShipsTouching
				}
			}
		}
	}

	return nil
}

// PlaceShip records one ship and marks its cells. A placement identical in
// type, position and orientation to an existing ship is rejected.
func (that *Board) PlaceShip(shipType ShipType, row, col int, horizontal, allowTouching bool) error {
	if len(that.Ships) >= MaxShips {
		return apperror.ErrAllShipsPlaced
	}

	length := shipType.Length()
	if length == 0 {
		return fmt.Errorf("%w: %d", apperror.ErrUnknownShipType, shipType)
	}

	for i := range that.Ships {
		existing := &that.Ships[i]
		if existing.Type == shipType && existing.Row == row && existing.Col == col && existing.Horizontal == horizontal {
			return apperror.ErrDuplicateShip
		}
	}

	if err := that.ValidatePlacement(row, col, length, horizontal, allowTouching); err != nil {
		return err
	}

	ship := Ship{
		Type:       shipType,
		Row:        row,
		Col:        col,
		Horizontal: horizontal,
	}

	for i := 0; i < length; i++ {
		r, c := ship.cell(i)
		that.Grid[r][c] = CellShip
	}

	that.Ships = append(that.Ships, ship)
	that.ShipsRemaining++

	return nil
}

// IsValidShot reports whether a cell is in range and has not been shot yet.
func (that *Board) IsValidShot(row, col int) bool {
	if !inBounds(row, col) {
		return false
	}

	cell := that.Grid[row][col]

	return cell != CellHit && cell != CellMiss
}

// ShipAt returns the ship covering the cell, or nil.
func (that *Board) ShipAt(row, col int) *Ship {
	for i := range that.Ships {
		ship := &that.Ships[i]
		for j := 0; j < ship.Type.Length(); j++ {
			r, c := ship.cell(j)
			if r == row && c == col {
				return ship
			}
		}
	}

	return nil
}

// ProcessShot applies one shot. A cell transitions water->miss or ship->hit
// exactly once; shots at already-resolved cells return ErrInvalidShot and
// leave the board untouched.
func (that *Board) ProcessShot(row, col int) (ShotResult, error) {
	result := ShotResult{Row: row, Col: col}

	if !that.IsValidShot(row, col) {
		return result, fmt.Errorf("%w: (%d, %d)", apperror.ErrInvalidShot, row, col)
	}

	if that.Grid[row][col] != CellShip {
		that.Grid[row][col] = CellMiss
		return result, nil
	}

	that.Grid[row][col] = CellHit
	result.IsHit = true

	ship := that.ShipAt(row, col)
	if ship == nil {
		// Grid says ship but no ship record covers the cell. Environmental
		// damage in the data, not a reason to crash; the hit still counts.
		return result, nil
	}

	ship.Hits++
	if ship.Hits >= ship.Type.Length() {
		ship.Sunk = true
		result.IsSunk = true
		result.SunkType = ship.Type
		that.ShipsRemaining--

		if that.ShipsRemaining == 0 {
			result.GameOver = true
		}
	}

	return result, nil
}

// EncodeGrid flattens the board into the length-encoded wire/persisted form:
// water 0, ship cells carry the owning ship's length, hit 12, miss 13.
func (that *Board) EncodeGrid() [BoardSize * BoardSize]byte {
	var out [BoardSize * BoardSize]byte

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			switch that.Grid[row][col] {
			case CellHit:
				out[row*BoardSize+col] = gridHit
			case CellMiss:
				out[row*BoardSize+col] = gridMiss
			case CellShip:
				if ship := that.ShipAt(row, col); ship != nil {
					out[row*BoardSize+col] = byte(ship.Type.Length())
				} else {
					out[row*BoardSize+col] = byte(ShipPatrol)
				}
			}
		}
	}

	return out
}

// RebuildShipsFromGrid reconstructs ship records from a length-encoded grid
// by scanning for contiguous horizontal and vertical runs of the same value.
// A run is recognized when its length equals the cell value; anything else is
// reported as an anomaly for the caller to log, never silently dropped.
func RebuildShipsFromGrid(grid [BoardSize * BoardSize]byte) ([]Ship, []string) {
	var ships []Ship
	var anomalies []string

	var claimed [BoardSize][BoardSize]bool

	cellAt := func(row, col int) byte {
		return grid[row*BoardSize+col]
	}

	isShipCell := func(row, col int) bool {
		v := cellAt(row, col)
		return v >= byte(ShipPatrol) && v <= byte(ShipCarrier)
	}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			if claimed[row][col] || !isShipCell(row, col) {
				continue
			}

			value := cellAt(row, col)

			runRight := 1
			for col+runRight < BoardSize && !claimed[row][col+runRight] && cellAt(row, col+runRight) == value {
				runRight++
			}

			runDown := 1
			for row+runDown < BoardSize && !claimed[row+runDown][col] && cellAt(row+runDown, col) == value {
				runDown++
			}

			length := int(value)

			switch {
			case runRight == length && (length > 1 || runDown == 1):
				for i := 0; i < length; i++ {
					claimed[row][col+i] = true
				}
				ships = append(ships, Ship{Type: ShipType(value), Row: row, Col: col, Horizontal: true})
			case runDown == length:
				for i := 0; i < length; i++ {
					claimed[row+i][col] = true
				}
				ships = append(ships, Ship{Type: ShipType(value), Row: row, Col: col, Horizontal: false})
			default:
				claimed[row][col] = true
				anomalies = append(anomalies, fmt.Sprintf(
					"cell (%d, %d) value %d does not belong to a run of matching length", row, col, value))
			}
		}
	}

	return ships, anomalies
}

// BoardFromGrid builds a Board from a length-encoded grid, reconstructing
// ship records and normalizing recognized ship cells to CellShip.
func BoardFromGrid(grid [BoardSize * BoardSize]byte) (*Board, []string) {
	ships, anomalies := RebuildShipsFromGrid(grid)

	board := NewBoard()
	for i := range ships {
		ship := ships[i]
		for j := 0; j < ship.Type.Length(); j++ {
			r, c := ship.cell(j)
			board.Grid[r][c] = CellShip
		}
	}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			switch grid[row*BoardSize+col] {
			case gridHit:
				board.Grid[row][col] = CellHit
			case gridMiss:
				board.Grid[row][col] = CellMiss
			}
		}
	}

	board.Ships = ships
	board.ShipsRemaining = len(ships)

	return board, anomalies
}

// RestoreBoard rebuilds a Board from persisted ship records plus the hit and
// miss marks of a length-encoded grid. Ship records are authoritative for
// cell ownership; the grid contributes only resolved shots.
func RestoreBoard(ships []Ship, grid [BoardSize * BoardSize]byte, remaining int) *Board {
	board := NewBoard()
	board.Ships = append([]Ship(nil), ships...)
	board.ShipsRemaining = remaining

	for i := range board.Ships {
		ship := &board.Ships[i]
		for j := 0; j < ship.Type.Length(); j++ {
			r, c := ship.cell(j)
			board.Grid[r][c] = CellShip
		}
	}

	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			switch grid[row*BoardSize+col] {
			case gridHit:
				board.Grid[row][col] = CellHit
			case gridMiss:
				board.Grid[row][col] = CellMiss
			}
		}
	}

	return board
}

// HasCompleteFleet reports whether the board holds the full five-ship set,
// one of each type.
func (that *Board) HasCompleteFleet() bool {
	if len(that.Ships) != MaxShips {
		return false
	}

	var seen [ShipCarrier + 1]bool
	for i := range that.Ships {
		t := that.Ships[i].Type
		if t.Length() == 0 || seen[t] {
			return false
		}
		seen[t] = true
	}

	return true
}
