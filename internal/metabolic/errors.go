package metabolic

import "fmt"

// ParseError reports content that a reader rejected as malformed.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s model: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind names the exception recorded when a queued payload fails to parse.
func (e *ParseError) Kind() string {
	return "ModelParseError"
}
