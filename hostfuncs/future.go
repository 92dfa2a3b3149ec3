package hostfuncs

import (
	"context"
)

// Future is the deferred value of an asynchronous op.
//
// Poll is called on the driver goroutine once per scheduling tick. It must
// not block: when the value is not available yet it returns ready=false and
// is polled again on a later tick. Once it returns ready=true it is never
// polled again.
type Future interface {
	Poll(ctx context.Context) (value uint32, ready bool, err error)
}

// FutureFunc adapts a function to the Future interface.
type FutureFunc func(ctx context.Context) (uint32, bool, error)

// Poll calls f(ctx).
func (f FutureFunc) Poll(ctx context.Context) (uint32, bool, error) {
	return f(ctx)
}

// Ready returns a Future that completes with v on its first poll.
func Ready(v uint32) Future {
	return FutureFunc(func(context.Context) (uint32, bool, error) {
		return v, true, nil
	})
}

// Fail returns a Future that fails with err on its first poll.
func Fail(err error) Future {
	return FutureFunc(func(context.Context) (uint32, bool, error) {
		return 0, true, err
	})
}

// Promise is a Future settled explicitly by its owner.
// Like the rest of the op state it is meant for the driver goroutine only.
type Promise struct {
	err     error
	value   uint32
	settled bool
}

// NewPromise creates an unsettled Promise.
func NewPromise() *Promise {
	return &Promise{}
}

// Resolve settles the promise with v. Later calls are ignored.
func (p *Promise) Resolve(v uint32) {
	if p.settled {
		return
	}
	p.value, p.settled = v, true
}

// Reject settles the promise with err. Later calls are ignored.
func (p *Promise) Reject(err error) {
	if p.settled {
		return
	}
	p.err, p.settled = err, true
}

// Settled reports whether Resolve or Reject has been called.
func (p *Promise) Settled() bool {
	return p.settled
}

// Poll implements Future.
func (p *Promise) Poll(context.Context) (uint32, bool, error) {
	if !p.settled {
		return 0, false, nil
	}
	return p.value, true, p.err
}
