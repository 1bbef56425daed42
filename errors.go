package substrate

import (
	"errors"
)

// Substrate errors shared across the root package.
var (
	// Observer errors
	ErrObserverNil = errors.New("observer is nil")
)
