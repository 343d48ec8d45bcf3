package venue

import "errors"

// ErrInvalidTier is returned for a price tier outside 0..4.
var ErrInvalidTier = errors.New("invalid price tier")
