// Package core defines the shared domain model of the threadline runtime:
// immutable events, the append-only thread abstraction, tool call/result
// types with their terminal-status semantics, and token usage accounting
// primitives. All higher layers (thread stores, the agent state machine,
// the tool executor, orchestration) depend on core and never the reverse.
package core
