package hostfuncs

import (
	"context"

	"github.com/deno-lib/oned/wireformat"
)

// OpContext wraps a standard context.Context with the op being invoked.
// Handlers and middleware use it to learn the op name and the decoded
// request record without extra parameters.
type OpContext interface {
	context.Context

	// OpName returns the name of the op being invoked.
	OpName() string

	// Record returns the decoded request record.
	Record() wireformat.Record
}

// opContext is the concrete implementation of OpContext.
type opContext struct {
	context.Context
	name   string
	record wireformat.Record
}

// NewOpContext creates a new OpContext wrapping the given context.
func NewOpContext(ctx context.Context, name string, record wireformat.Record) OpContext {
	return &opContext{
		Context: ctx,
		name:    name,
		record:  record,
	}
}

// OpName returns the name of the op being invoked.
func (c *opContext) OpName() string {
	return c.name
}

// Record returns the decoded request record.
func (c *opContext) Record() wireformat.Record {
	return c.record
}

// OpContextFrom extracts an OpContext from a context.Context.
func OpContextFrom(ctx context.Context) (OpContext, bool) {
	oc, ok := ctx.(OpContext)
	return oc, ok
}
