// Package repositories implements SQLite persistence for archived task reports.
//
// [ReportRepository] stores the final report of every task that reaches a terminal status and
// serves it back for listing and rendering. The archive is history only: the task manager never
// reloads it.
//
// Sequence numbers provide stable, human-readable ordering (report #42) independent of UUIDs and
// timestamps. The [NextSequence] function atomically increments per-table counters held in
// dedicated sequence tables.
package repositories
