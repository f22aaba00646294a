package submission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDecompressedTooLarge is wrapped by a DecompressionError when a
// compressed upload expands past the configured limit.
var ErrDecompressedTooLarge = errors.New("decompressed payload exceeds limit")

// DecompressionError reports a truncated or corrupt compression envelope.
type DecompressionError struct {
	Codec string
	Err   error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("%s decompression: %v", e.Codec, e.Err)
}

func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned when neither the declared MIME type nor
// the filename identify a model format. Accepted lists every recognised MIME
// type.
type UnsupportedFormatError struct {
	MimeType string
	Accepted []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("'%s' is an unhandled MIME type. Recognized MIME types are: %s",
		e.MimeType, strings.Join(e.Accepted, ", "))
}

// ParseError wraps a parser rejection of content in a recognised format.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SBMLValidationError carries the notifications of a rejected SBML document
// verbatim.
type SBMLValidationError struct {
	Version  string
	Warnings []string
	Errors   []string
}

func (e *SBMLValidationError) Error() string {
	return fmt.Sprintf("sbml validation failed with %d errors and %d warnings", len(e.Errors), len(e.Warnings))
}
