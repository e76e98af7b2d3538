// Package fabric implements a per-stream, memory-bounded buffering layer
// between record-producing ingesters and batch-uploading consumers.
//
// Producers call Enqueuer.AddRecord to hand a Message to a named
// StreamDescriptor's queue. Consumers call Dequeuer.Take to drain a
// size-capped Batch, process it, and Close it to return its memory to the
// shared GlobalMemoryBudget. A single BufferManager wires these pieces
// together along with lazy queue creation and periodic telemetry.
package fabric
