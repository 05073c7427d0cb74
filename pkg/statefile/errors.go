package statefile

import "errors"

var (
	ErrRead    = errors.New("statefile: read failed")
	ErrCorrupt = errors.New("statefile: corrupt document")
	ErrWrite   = errors.New("statefile: write failed")
)
