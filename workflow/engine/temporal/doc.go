// Package temporal implements the Workflow Engine's (C9) durable backend:
// the DAG itself becomes the Temporal workflow function and each
// WorkflowTask becomes a Temporal activity, so an execution survives
// process restarts and replays deterministically from event history.
// Grounded directly on the teacher's runtime/agent/engine/temporal
// package: the same Options/WorkerOptions/InstrumentationOptions shape,
// the same lazy-client-plus-auto-starting-worker lifecycle, and the same
// OTEL interceptor wiring, generalized from a single generic workflow
// handler to a fixed DAG-scheduling workflow function plus one shared
// task-dispatch activity.
//
// Workflow execution state is exposed to callers (GetExecutionStatus,
// ListExecutions, ...) through a Temporal query handler rather than a
// side channel, mirroring the teacher's query-handler convention for
// run-status introspection without blocking the workflow.
package temporal
