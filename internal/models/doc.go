// Package models defines the data model shared by the analysis pipeline, its transports and the report archive.
//
// The package contains three groups of types:
//
// 1. Request types: what a caller submits
//   - [AnalysisConfig] : audio resource, sample rate, chunk size, pacing interval and plugin invocations
//   - [AudioResource] : tagged union of a local file path or a URL
//   - [PluginInvocation] : plugin name plus parameter overrides
//
// 2. Result types: what the pipeline produces
//   - [Values] : one plugin's result mapping, or an error record {"error": message}
//   - [ChunkResult] : plugin name to [Values] for one chunk
//   - [Update] : incremental (chunk results) or terminal (status) event for observers
//   - [Report] : a task snapshot with config, status and results so far
//
// 3. Lifecycle: [Status] and its transition table.
//
// JSON field names follow the original wire format (snake_case), so reports round-trip through the HTTP API and the archive unchanged.
package models
