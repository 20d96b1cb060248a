package domain

import "errors"

var (
	ErrNotFound         = errors.New("job not found")
	ErrNotSkippable     = errors.New("job already finished")
	ErrInvalidSettings  = errors.New("invalid settings")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrEngineNotReady   = errors.New("engine not ready")
)
