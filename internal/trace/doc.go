// Package trace records spans and instant events for spark operations.
//
// Spans cover the stages a kernel goes through: building the tree, emitting
// source, compiling on the device, binding arguments and dispatching. They
// help locate slow device compiles and stalled dispatches.
//
// # Usage
//
//	spark run --trace=- --trace-level=stage saxpy
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is off
//   - StreamTracer: writes every event as it happens
//   - RingTracer: keeps the most recent events for a dump after a failure
//   - MultiTracer: fans out to several tracers
//
// # Scopes
//
//   - ScopeCommand: one CLI command or top-level API call
//   - ScopeStage: build, codegen, device compile, dispatch
//   - ScopeKernel: per-argument and per-buffer work
//   - ScopeNode: tree-level detail
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span, ctx := trace.Start(ctx, trace.ScopeStage, "compile")
//	defer span.End("")
package trace
