package urlnorm

import "errors"

// ErrInvalidURL is returned when an input cannot be turned into an
// absolute http or https URL.
var ErrInvalidURL = errors.New("invalid url")
