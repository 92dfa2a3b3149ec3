package ports

import (
	"context"
)

// SyncOpFunc answers an op call immediately. It receives the raw control
// buffer and the optional auxiliary payload and returns the response buffer.
// It must never suspend.
type SyncOpFunc func(ctx context.Context, control, zeroCopy []byte) []byte

// AsyncOpFunc starts an op call whose response is delivered later.
// zeroCopy is only valid for the duration of the AsyncOpFunc call itself.
type AsyncOpFunc func(ctx context.Context, control, zeroCopy []byte) PendingOp

// PendingOp is an in-flight asynchronous op owned by the engine.
// Poll is called once per scheduling tick until it reports ready; the
// response is delivered back to the script exactly once.
type PendingOp interface {
	Poll(ctx context.Context) (response []byte, ready bool)
}

// Engine defines the hosted scripting engine the op bridge plugs into.
type Engine interface {
	// RegisterSyncOp binds a synchronous slot under name.
	RegisterSyncOp(name string, fn SyncOpFunc) error

	// RegisterAsyncOp binds an asynchronous slot under name.
	RegisterAsyncOp(name string, fn AsyncOpFunc) error

	// Poll advances the script and every pending async op.
	// done is true once the engine has no more work.
	Poll(ctx context.Context) (done bool, err error)
}
