package process

import "errors"

// ErrInvalidPID is returned for PIDs that cannot name a process group.
var ErrInvalidPID = errors.New("invalid pid")
