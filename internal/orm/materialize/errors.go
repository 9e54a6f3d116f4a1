package materialize

import "errors"

var (
	// ErrShortRow is returned when a row has fewer columns than a strategy reads
	ErrShortRow = errors.New("row is shorter than the planned projection")

	// ErrMissingStream is returned when a strategy reads a stream that was not opened
	ErrMissingStream = errors.New("stream was not opened")
)
