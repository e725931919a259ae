package game

import (
	"errors"
	"fmt"
)

// ErrIllegalMove is the sentinel behind every rejected intent: wrong turn,
// wrong phase, or a tile that does not fit. The match is left unchanged.
var ErrIllegalMove = errors.New("illegal move")

// IllegalMoveError carries the reason a move was rejected.
type IllegalMoveError struct {
	SeatID string
	Reason string
}

func (e *IllegalMoveError) Error() string {
	if e.SeatID == "" {
		return fmt.Sprintf("illegal move: %s", e.Reason)
	}
	return fmt.Sprintf("illegal move by %s: %s", e.SeatID, e.Reason)
}

func (e *IllegalMoveError) Unwrap() error {
	return ErrIllegalMove
}

func illegal(seatID, format string, args ...any) error {
	return &IllegalMoveError{SeatID: seatID, Reason: fmt.Sprintf(format, args...)}
}
