// Package services connects analysis tasks to external systems.
//
// # Redis Fan-out
//
// [RedisSink] publishes every task update as JSON on a Redis pub/sub channel so that processes other than the one
// running the analysis can follow it. Publishing happens on a single background goroutine fed by a bounded queue:
// [RedisSink.Emit] never blocks the chunk loop on the network.
//
// Incremental updates are dropped when the queue is full. Terminal updates wait briefly for room before they are
// dropped too. Dropped updates are counted in [metrics.Metrics].
//
// [NewRedisClient] opens and pings the client described by [shared.RedisConfig].
package services
