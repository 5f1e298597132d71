package fetcher

import "fmt"

// TransportError means a mirror could not deliver the file body.
type TransportError struct {
	Mirror string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mirror %s: %v", e.Mirror, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// WriteError means the body was received but could not be stored.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
