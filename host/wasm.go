package host

import (
	"context"
	"fmt"

	"github.com/deno-lib/oned/domain/errors"
	"github.com/deno-lib/oned/wireformat"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// deliver copies an async response into guest memory and hands it to recv.
func (e *Executor) deliver(ctx context.Context, response []byte) error {
	if e.alloc == nil || e.recv == nil {
		return &errors.EngineError{
			Stage: "deliver",
			Err:   fmt.Errorf("guest must export %q and %q to receive async responses", ExportAlloc, ExportRecv),
		}
	}

	results, err := e.alloc.Call(ctx, api.EncodeU32(uint32(len(response)))) //nolint:gosec // G115: response is one record
	if err != nil {
		return &errors.EngineError{Stage: ExportAlloc, Err: err}
	}
	if len(results) == 0 {
		return &errors.EngineError{Stage: ExportAlloc, Err: fmt.Errorf("%s returned no results", ExportAlloc)}
	}
	ptr := api.DecodeU32(results[0])

	if !e.guest.Memory().Write(ptr, response) {
		return &errors.EngineError{
			Stage: "deliver",
			Err:   errors.NewContractError(errors.ViolationMemory, "write of %d bytes at %#x is out of range", len(response), ptr),
		}
	}

	if rec, err := wireformat.Decode(response); err == nil {
		e.logger.Debug("delivering async response", zap.Stringer("record", rec))
	}

	if _, err := e.recv.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(uint32(len(response)))); err != nil { //nolint:gosec // G115
		return &errors.EngineError{Stage: ExportRecv, Err: err}
	}
	return nil
}

// recoveredError turns a recovered panic value into an error.
func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
