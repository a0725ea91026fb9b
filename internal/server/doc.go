// Package server exposes the task manager over HTTP and streams task updates over websockets.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it was added; the first added is the outermost wrapper.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on [http.ServeMux]. Paths may use
// ServeMux wildcards such as "/status/{id}".
//
// # Routes
//
// [API.Router] registers:
//   - POST /start_analysis : body is an analysis config, returns {"task_id": ...}
//   - POST /stop_analysis : body is {"task_id": ...}; 200 when cancellation was requested, 404 for unknown tasks, 409 otherwise
//   - GET /status/{id} : current status, 404 with status "not_found" for unknown tasks
//   - GET /report/{id}?format=json|csv|markdown|html : rendered report, falling back to the archive
//   - GET /plugins, GET /tasks, GET /reports, GET /healthz, GET /metrics
//   - GET /ws?task_id= : live updates as JSON text frames
//
// # Middleware
//
// [Recoverer], [RequestLogger], [Instrument] and [RateLimit] are applied to every route. The rate limiter
// only guards /start_analysis.
//
// # Websockets
//
// [Hub] implements the task update sink. Each client owns a bounded queue; when it is full the update is
// dropped for that client only. Clients following one task are closed with a normal closure after the
// terminal update.
package server
