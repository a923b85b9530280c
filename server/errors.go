package server

import "errors"

var (
	ErrInvalidConfig = errors.New("server: invalid configuration")
	ErrStreamBudget  = errors.New("server: concurrent stream budget exhausted")
	ErrChannelRange  = errors.New("server: channel id exceeds configured budget")
	ErrClientClosed  = errors.New("server: client session already closed")
	ErrFlush         = errors.New("server: failed to flush stream")
)
