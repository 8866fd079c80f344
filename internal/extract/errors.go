package extract

import "errors"

// ErrExtractionFailed is returned when an extractor could not produce a result.
var ErrExtractionFailed = errors.New("extraction failed")
