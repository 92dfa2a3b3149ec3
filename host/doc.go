// Package host provides the hosted engine the op bridge plugs into.
//
// It runs a WASM guest on wazero, exposes the bound ops as imports of the
// host module, and schedules asynchronous ops: every Poll advances each
// pending op once and delivers ready responses to the guest's recv export.
// A guest written in WAT can be compiled with CompileScript; DefaultScript
// returns the embedded startup script.
package host
