package bencode

import (
	"errors"
	"fmt"
)

var (
	ErrFormat                 = errors.New("unrecognized token")
	ErrMissingSeparator       = errors.New("missing ':' after string length")
	ErrUnexpectedEnd          = errors.New("unexpected end of data")
	ErrInvalidInteger         = errors.New("invalid integer literal")
	ErrUnterminatedInteger    = errors.New("missing 'e' at end of integer")
	ErrUnterminatedList       = errors.New("missing 'e' at end of list")
	ErrUnterminatedDictionary = errors.New("missing 'e' at end of dictionary")
	ErrNonStringKey           = errors.New("dictionary key is not a string")
	ErrTrailingData           = errors.New("trailing data after value")
	ErrUnsupportedValue       = errors.New("unsupported value")
)

// SyntaxError describes where decoding failed. Err is one of the Err*
// sentinels above.
type SyntaxError struct {
	Offset int
	Char   byte
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Err == ErrFormat {
		return fmt.Sprintf("bencode: %v %q at index %d", e.Err, e.Char, e.Offset)
	}
	return fmt.Sprintf("bencode: %v at index %d", e.Err, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func syntaxError(data []byte, offset int, err error) *SyntaxError {
	e := &SyntaxError{Offset: offset, Err: err}
	if offset >= 0 && offset < len(data) {
		e.Char = data[offset]
	}
	return e
}
