package correlation

import "errors"

// ErrRegistryClosed is returned by Await for entries discarded by Close.
var ErrRegistryClosed = errors.New("correlation: registry closed")
