package types

import "errors"

var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrDowntimeNotFound    = errors.New("downtime not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidDriver       = errors.New("invalid database driver")
)
