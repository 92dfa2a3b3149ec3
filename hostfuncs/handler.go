package hostfuncs

import (
	"context"

	"github.com/deno-lib/oned/state"
)

// Kind tags an op as synchronous or asynchronous.
type Kind int

const (
	// KindSync ops answer inline and are called with promise id 0.
	KindSync Kind = iota + 1
	// KindAsync ops answer later and are called with a non-zero promise id.
	KindAsync
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// SyncHandler runs a synchronous op to completion.
// A nil error maps to a non-negative result; any error maps to -1.
type SyncHandler func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) (uint32, error)

// AsyncHandler starts an asynchronous op and returns its deferred value.
// zeroCopy is only valid until AsyncHandler returns; copy it to keep it.
type AsyncHandler func(ctx context.Context, st *state.State, rid uint32, zeroCopy []byte) Future

// Op is a named native operation.
type Op struct {
	Sync  SyncHandler
	Async AsyncHandler
	Name  string
	Kind  Kind
}

// SyncOp builds a synchronous Op.
func SyncOp(name string, h SyncHandler) Op {
	return Op{Name: name, Kind: KindSync, Sync: h}
}

// AsyncOp builds an asynchronous Op.
func AsyncOp(name string, h AsyncHandler) Op {
	return Op{Name: name, Kind: KindAsync, Async: h}
}
