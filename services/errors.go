package services

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrGameNotFound     = errors.New("game not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrPlayerExists     = errors.New("player id already in use")
)
