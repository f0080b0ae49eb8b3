package errors

import (
	"errors"

	"roombooking/pkg/model"
)

var (
	ErrNotFound = model.ErrRoomNotFound

	ErrInvalidID = errors.New("invalid room ID format")

	ErrStorage = errors.New("room storage failure")
)
