package service

import (
	"errors"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidBooking   = errors.New("invalid booking")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
