// Package owner implements the unit that holds a store's real
// handles. An owner publishes its port's address in the shared
// registry and executes the commands that arrive on the port.
//
//   Uninitialized --Listen--> Listening --Stop--> Stopped
//
// Requests are not serialized against each other. Each runs in
// its own goroutine and relies on the per-box locks for the
// atomicity of single operations.
package owner
