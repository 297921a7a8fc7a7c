package jobs

import (
	"fmt"
	"time"
)

// State describes where a Job is in its lifecycle. Jobs only ever move forward:
// Queued, then Running, then Done.
type State int

const (
	Queued State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Synthetic exit codes for jobs whose command never produced one of its own.
const (
	// ExitLaunchFailed is used when the command could not be started at all
	// (missing program, permission denied, no capture sink).
	ExitLaunchFailed = 127
	// ExitCanceled is used for jobs that were stopped or skipped because the
	// context passed to Await was cancelled.
	ExitCanceled = 130
)

// Job is one external command owned by a Scheduler.
//
// The scheduler owns a Job until it reaches Done; afterwards it is handed to the caller
// through Result or the OnComplete callback and is never touched again.
type Job struct {
	ID      int
	Command string
	State   State

	// ExitCode and Output are only meaningful once State is Done.
	ExitCode int
	Output   []byte

	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}

// Failed reports whether the job finished with a non-zero exit code.
func (j *Job) Failed() bool {
	return j.State == Done && j.ExitCode != 0
}

// Duration returns how long the command was running.
func (j *Job) Duration() time.Duration {
	if j.Started.IsZero() || j.Finished.IsZero() {
		return 0
	}

	return j.Finished.Sub(j.Started)
}

func (j *Job) String() string {
	return fmt.Sprintf("<Job #%d %s: %s>", j.ID, j.State, j.Command)
}

func (j *Job) advance(next State) {
	if next != j.State+1 {
		panic(fmt.Sprintf("job #%d: invalid transition from %s to %s", j.ID, j.State, next))
	}

	j.State = next
}
