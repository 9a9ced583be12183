package apperror

import "errors"

var (
	ErrOutOfRange   = errors.New("move is out of history range")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrGameNotFound = errors.New("game not found")
)
