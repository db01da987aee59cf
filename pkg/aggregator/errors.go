package aggregator

import "errors"

var (
	// ErrCheckpointRegress is returned when an advance would move a checkpoint backwards.
	ErrCheckpointRegress = errors.New("checkpoint cannot move backwards")
	// ErrInvalidBlock marks a block record missing a required field.
	ErrInvalidBlock = errors.New("invalid block record")
	// ErrUnknownWindow is returned for a rolling window selector outside m|h|d.
	ErrUnknownWindow = errors.New("unknown rolling window")
	// ErrUnknownKind is returned when a trigger names no aggregator.
	ErrUnknownKind = errors.New("unknown aggregator kind")
	// ErrHeightNotFound is returned when nothing is stored at a height.
	ErrHeightNotFound = errors.New("height not found")
)
