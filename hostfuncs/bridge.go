package hostfuncs

import (
	"context"
	stdErrors "errors"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/domain/ports"
	"github.com/deno-lib/oned/state"
	"github.com/deno-lib/oned/wireformat"
)

// SyncSlot adapts a SyncHandler to the engine's synchronous op signature.
//
// The returned function decodes the control record, requires promise id 0,
// runs the handler against st and returns the request record with its result
// field set. Malformed records and out-of-range results panic with a
// *errors.ContractError; handler errors become result -1.
func SyncSlot(name string, st *state.State, h SyncHandler) ports.SyncOpFunc {
	return func(ctx context.Context, control, zeroCopy []byte) []byte {
		rec := decodeRecord(name, control)
		if rec.PromiseID != 0 {
			panic(&errors.ContractError{
				Violation: errors.ViolationRouting,
				Op:        name,
				Detail:    "sync op called with non-zero promise id: " + rec.String(),
			})
		}

		v, err := h(NewOpContext(ctx, name, rec), st, rec.RID, zeroCopy)
		return rec.WithResult(collapse(st.Logger, name, rec, v, err)).Bytes()
	}
}

// AsyncSlot adapts an AsyncHandler to the engine's asynchronous op signature.
//
// The returned function decodes the control record, requires a non-zero
// promise id and starts the handler. The engine polls the resulting
// ports.PendingOp until it yields the response record, which carries the
// request's promise id and rid.
func AsyncSlot(name string, st *state.State, h AsyncHandler) ports.AsyncOpFunc {
	return func(ctx context.Context, control, zeroCopy []byte) ports.PendingOp {
		rec := decodeRecord(name, control)
		if rec.PromiseID == 0 {
			panic(&errors.ContractError{
				Violation: errors.ViolationRouting,
				Op:        name,
				Detail:    "async op called with promise id 0: " + rec.String(),
			})
		}

		fut := h(NewOpContext(ctx, name, rec), st, rec.RID, zeroCopy)
		if fut == nil {
			fut = Fail(errNilFuture)
		}
		return &pendingOp{name: name, record: rec, future: fut, st: st}
	}
}

var errNilFuture = stdErrors.New("handler returned no future")

// pendingOp couples a Future with the request record it answers.
type pendingOp struct {
	future Future
	st     *state.State
	name   string
	record wireformat.Record
	done   bool
}

// Poll implements ports.PendingOp. The response is produced exactly once;
// polling a completed op is a routing violation.
func (p *pendingOp) Poll(ctx context.Context) ([]byte, bool) {
	if p.done {
		panic(&errors.ContractError{
			Violation: errors.ViolationRouting,
			Op:        p.name,
			Detail:    "pending op polled after completion: " + p.record.String(),
		})
	}

	v, ready, err := p.future.Poll(NewOpContext(ctx, p.name, p.record))
	if !ready {
		return nil, false
	}
	p.done = true
	return p.record.WithResult(collapse(p.st.Logger, p.name, p.record, v, err)).Bytes(), true
}
