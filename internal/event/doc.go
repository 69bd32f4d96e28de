// Package event defines the values and events recorded by probelog.
//
// Every other internal package imports event; event imports nothing internal.
// This keeps the event model the foundational layer with no circular
// dependencies.
//
// Both Value and Event are sealed interfaces: only the types in this package
// implement them, so a type switch over either is exhaustive.
//
// Key constraints:
//   - Text fields are written NUL-terminated, so they must not contain NUL.
//   - A method call carries at most MaxArguments arguments (one length byte).
//   - A Reference to StringClass carries its text; any other Reference carries
//     an opaque, run-local IdentityTag that is never dereferenced.
//   - Events are immutable once published. Producers build them, the engine
//     owns them afterwards.
package event
