package apperror

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyJoined     = errors.New("player already joined")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrInvalidCell       = errors.New("invalid cell coordinates")
	ErrRoomNotStarted    = errors.New("room is not started")
	ErrRoomFinished      = errors.New("room is already finished")
	ErrRulesUnavailable  = errors.New("rules check unavailable")
)
