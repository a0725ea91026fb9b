// Package tasks runs analysis tasks: decode an audio resource, split it into chunks, dispatch every
// chunk through the configured plugins and stream the results to observers.
//
// # Lifecycle
//
// A task starts [models.StatusPending]. [Manager.Start] returns its id immediately and a single
// goroutine drives it:
//
//  1. Decode via [audio.Decoder]. Failure moves the task to error.
//  2. Move to running and partition the samples into chunks of ChunkSize.
//  3. For each chunk, check for cancellation, dispatch, append the result, emit an update, then
//     wait the pacing interval. There is no wait after the last chunk.
//  4. Finish as completed, or stopped when cancellation was requested.
//
// Cancellation is cooperative and observed only at chunk boundaries: [Manager.Stop] never
// interrupts a plugin call.
//
// # Updates
//
// Observers implement [Sink]. Incremental updates carry Results; terminal updates carry only
// the final Status. [ChannelSink] never blocks the chunk loop on incremental updates and waits at
// most [TerminalWait] for terminal ones.
//
// # Plugin isolation
//
// [Dispatcher] records a failing or panicking plugin as {"error": message} under its name and
// moves on. Unregistered plugin names are logged and counted but produce no entry.
//
// # Batches
//
// [Manager.RunBatch] analyzes many resources with a bounded worker pool and a start rate limit,
// writing one report per task plus a manifest.
package tasks
