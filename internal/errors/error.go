package errors

import "errors"

var (
	ErrWrongTurn        = errors.New("Not your turn")
	ErrInvalidPosition  = errors.New("Invalid position")
	ErrOccupied         = errors.New("Intersection occupied")
	ErrSuicide          = errors.New("Suicide move not allowed")
	ErrKoViolation      = errors.New("Ko rule violation")
	ErrInvalidBoardSize = errors.New("invalid board size")

	ErrNoColor           = errors.New("must choose a color first")
	ErrColorTaken        = errors.New("color already taken")
	ErrUnknownConnection = errors.New("unknown connection")

	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidColor       = errors.New("invalid color")

	ErrRecordNotFound = errors.New("record not found")
)
