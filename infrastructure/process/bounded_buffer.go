package process

import (
	"bytes"
)

// BoundedBuffer is a bytes.Buffer wrapper that keeps at most limit bytes.
// It implements io.Writer and can be used with exec.Cmd's Stdout/Stderr.
type BoundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	Truncated bool
}

// NewBoundedBuffer creates a new BoundedBuffer with the specified limit.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	return &BoundedBuffer{
		limit: limit,
	}
}

// Write implements io.Writer.
// Data past the limit is discarded and Truncated is set; Write still reports
// len(p) so exec's copy loop does not fail with a short write.
func (b *BoundedBuffer) Write(p []byte) (n int, err error) {
	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.Truncated = b.Truncated || len(p) > 0
		return len(p), nil
	}

	if len(p) > remaining {
		b.Truncated = true
		if _, err := b.buffer.Write(p[:remaining]); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	return b.buffer.Write(p)
}

// String returns the buffer contents as a string.
func (b *BoundedBuffer) String() string {
	return b.buffer.String()
}

// Len returns the current length of the buffer.
func (b *BoundedBuffer) Len() int {
	return b.buffer.Len()
}
