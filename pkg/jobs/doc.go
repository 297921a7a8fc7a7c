// Package jobs runs many independent external commands with bounded parallelism.
//
// Commands are submitted to a Scheduler which starts them as child processes as soon as a
// slot is free. Each child writes its combined output into a temporary file instead of a
// pipe so a chatty process can never stall while the scheduler is busy elsewhere.
// Await blocks until every submitted command has finished and hands the collected
// results back to the caller, which makes it usable as a barrier between build phases
// (compile everything, then link).
//
// The scheduler never interprets exit codes. A failing command does not stop the batch;
// callers inspect Result.Failed() or Result.Err() once Await returns.
package jobs
