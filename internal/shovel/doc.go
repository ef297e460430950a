/*
Package shovel implements the concurrency-governed pipeline engine at the
heart of mdshovel.

# Overview

The engine keeps a fixed number of multi-step metadata-creation operations
in flight against the store, forever. There is no backlog queue: demand is
generated on completion, so the configured concurrency is both the floor
and the ceiling of offered load.

Architecture

	┌──────────┐    run slots    ┌──────────┐   4 ordered steps   ┌────────┐
	│ Governor │ ───────────────▶│ Pipeline │ ───────────────────▶│ Writer │
	└────┬─────┘                 └──────────┘                     └───┬────┘
	     │ started/done/failed                                       │ per-call
	     │ end-to-end latency                                        │ latency
	     ▼                                                           ▼
	┌─────────────────────────── metrics.Recorder ────────────────────────┐
	└──────────────────────────────────────────────────────────────────────┘

# Governor

The Governor launches exactly `concurrency` slot goroutines once the store
client reports ready. Each slot loops: create an operation, run its
pipeline, record the outcome, and immediately start the next; the loop
iteration is the replacement launch. All shared state (the pending set and
the started/done/failed counters) lives behind a single mutex touched only
at operation start and completion, so at every observable point

	started - done == len(pending) <= concurrency

Operation-scoped errors are logged and absorbed inside the completion
path; they never affect other in-flight operations. Fatal store errors are
the process's problem, not the governor's.

# Pipeline

Each operation writes four entries in strict order: the large-directory
entry, two shared intermediate directories, and a unique leaf object. The
first unsuppressed failure aborts the remaining steps and is returned
wrapped with the step's index and name.

# Writer

The Writer translates the two pipeline operations onto the store's single
write primitive and applies the error policy: directory-creation conflicts
are expected contention (every operation races to create the same
intermediate directories) and are reported as success; object-creation
conflicts are genuine failures because leaf keys are unique per operation.

In dry-run mode the Writer skips the store entirely and substitutes a
fixed delay, so the engine's concurrency behavior is still exercised while
the per-call latency histogram stays empty.
*/
package shovel
