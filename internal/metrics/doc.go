// package metrics defines the Prometheus instruments for task execution, plugin dispatch,
// update delivery and the HTTP API.
//
// A nil *Metrics is valid and records nothing, so library callers and tests can skip wiring.
package metrics
