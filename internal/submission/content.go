package submission

import (
	"bytes"
	"io"
)

// Content is an uploaded model held fully in memory. It can be read any
// number of times until Close releases the buffer. A Content belongs to the
// request that produced it and is not safe for concurrent use.
type Content struct {
	data   []byte
	closed bool
}

// NewContent wraps an already buffered payload.
func NewContent(data []byte) *Content {
	return &Content{data: data}
}

// Reader returns a fresh reader positioned at the start of the payload.
func (c *Content) Reader() io.Reader {
	return bytes.NewReader(c.data)
}

// Close drops the buffer. Closing twice is a no-op.
func (c *Content) Close() error {
	c.data = nil
	c.closed = true
	return nil
}
