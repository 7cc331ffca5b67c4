package errors

import "errors"

var (
	ErrRoomNotFound       = errors.New("room with provided join code was not found")
	ErrRoomFull           = errors.New("room is full")
	ErrAvatarTaken        = errors.New("avatar is already taken in this room")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidRoll        = errors.New("invalid dice roll")
	ErrGameNotInProgress  = errors.New("game is not in progress")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrNotHost            = errors.New("only the host can do that")
	ErrMoveInFlight       = errors.New("previous move is still being applied")
	ErrGamePaused         = errors.New("game is paused")
	ErrPlayerNotFound     = errors.New("player was not found")
	ErrJoinCodeExhausted  = errors.New("could not generate a free join code")
	ErrJoinCodeTaken      = errors.New("join code is already in use")
	ErrPowerUpExhausted   = errors.New("power-up has no charges left")
	ErrStoreWriteFailed   = errors.New("store write failed")
	ErrChannelUnavailable = errors.New("broadcast channel unavailable")
	ErrSessionNotFound    = errors.New("session was not found")
	ErrNameRequired       = errors.New("display name is required")
	ErrInternal           = errors.New("internal error")
)
