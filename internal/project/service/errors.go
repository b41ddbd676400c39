package service

import "errors"

// Error classes mutations report. Every rejected operation leaves state
// untouched; callers map these to HTTP statuses with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrPollClosed = errors.New("poll is closed")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("conflict")
	ErrDenied     = errors.New("access denied")
)
