// Package pipeline wires a capture run together: it creates the trace file,
// starts the ordering engine on its own goroutine, hands out producers, and
// on shutdown flushes and closes the file and records the outcome in the
// optional run catalog.
//
// A sink failure is fatal to the process. The engine stops, the run is
// marked failed in the catalog, and the fatal handler (os.Exit(1) unless
// replaced with WithFatalHandler) terminates the process.
package pipeline
