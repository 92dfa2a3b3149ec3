// Package wazero exposes op slots as host functions of a wazero runtime.
//
// Every op becomes one import of the host module (default "oned") with the
// signature (ctrl_ptr, ctrl_len, zc_ptr, zc_len i32) -> i32. The adapter
// handles:
//
//   - Reading the control buffer and the optional payload from guest memory
//   - Writing synchronous responses back over the control buffer
//   - Handing asynchronous PendingOps to the caller's scheduler
//   - Exporting log(ptr, len i32) for script log lines
//
// Guest memory faults and oversized payloads are wire contract violations
// and panic with *errors.ContractError; wazero surfaces the panic as an error
// from the guest call that made the import.
//
// # Basic Usage
//
//	runtime := wazero.NewRuntime(ctx)
//
//	err := wazero.RegisterWithRuntime(ctx, runtime, wazero.Slots{
//	    Sync:     syncSlots,
//	    Async:    asyncSlots,
//	    Schedule: func(p ports.PendingOp) { pending = append(pending, p) },
//	})
package wazero
