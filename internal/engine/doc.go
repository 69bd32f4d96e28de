// Package engine implements the ordering engine and its index counter.
//
// ARCHITECTURE:
//
// Single-Consumer Event Loop:
// Producers publish events to a lock-free multi-producer queue in whatever
// order the scheduler lets them. Exactly one goroutine, Engine.Run, drains
// that queue and writes to the sink, so the sink never sees concurrent writes.
//
// Event Processing Flow:
//  1. An event draws its index from Counter.Next() when it is created
//  2. The producer calls Engine.Publish() once the event is complete
//  3. Run pops at most one event per iteration
//  4. An event whose index is next in line is encoded and written at once;
//     any other event is parked in a min-heap keyed by index
//  5. Parked events are released while the lowest one is next in line
//  6. When there is nothing to do, Run flushes the sink buffer and waits
//     for a publish signal, stop, or a bounded exponential backoff
//
// Shutdown:
// Shutdown waits for Run to start, allows a grace period for producers to
// finish, then stops the loop. The final flush closes the queue and keeps
// draining until the queue, in-flight publishes and heap are all empty. If a
// bounded number of attempts make no progress, an index is missing and Run
// returns *OrderingStallError naming it.
//
// A sink failure is fatal: Run returns *EngineFatalError immediately.
//
// INVARIANTS:
//   - Output indices are strictly increasing and contiguous from the first index
//   - Every event handed to Publish that returned true is written or reported
//   - The heap and next-expected index are touched only by Run
package engine
