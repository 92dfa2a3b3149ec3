// Package hostfuncs implements the op registry and the dispatch bridge.
//
// Native ops are registered by name as either synchronous or asynchronous
// handlers. OpRegistry.Bind plugs every op into an engine slot: the bridge
// decodes the 12-byte control record, calls the handler with the shared
// state, collapses any handler failure into the result -1 and encodes the
// response record. Synchronous ops answer inline; asynchronous ops return a
// Future that the engine polls until it is ready.
//
// The package has no WASM runtime dependency; engines adapt to it through
// ports.Engine.
package hostfuncs
