package seal

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing  = errors.New("seal key missing")
	ErrKeyTooShort = errors.New("seal key too short")
	ErrCorrupt     = errors.New("sealed blob corrupt")
)
