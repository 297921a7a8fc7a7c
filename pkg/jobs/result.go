package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Result is what Await hands back once a batch has drained.
type Result struct {
	// Batch identifies the batch in log messages. Empty if no job was submitted.
	Batch string
	// Jobs holds every job of the batch in completion order.
	Jobs []*Job
	// Output is the captured output of all jobs concatenated in completion order.
	Output  string
	Elapsed time.Duration
}

// Failed returns all jobs with a non-zero exit code.
func (r *Result) Failed() []*Job {
	failed := make([]*Job, 0)
	for _, job := range r.Jobs {
		if job.Failed() {
			failed = append(failed, job)
		}
	}

	return failed
}

// Succeeded reports whether every job exited with code zero.
func (r *Result) Succeeded() bool {
	for _, job := range r.Jobs {
		if job.Failed() {
			return false
		}
	}

	return true
}

// Job looks up a job by its id. Returns nil if the job isn't part of this result.
func (r *Result) Job(id int) *Job {
	for _, job := range r.Jobs {
		if job.ID == id {
			return job
		}
	}

	return nil
}

// Err returns a *BatchError if any job failed and nil otherwise.
func (r *Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}

	return &BatchError{
		Batch:  r.Batch,
		Total:  len(r.Jobs),
		Failed: failed,
	}
}

// BatchError lists the jobs of a batch that exited with a non-zero code.
type BatchError struct {
	Batch  string
	Total  int
	Failed []*Job
}

var _ error = (*BatchError)(nil)

func (e *BatchError) Error() string {
	buffer := strings.Builder{}
	buffer.WriteString(fmt.Sprintf("%d of %d commands failed", len(e.Failed), e.Total))

	for _, job := range e.Failed {
		buffer.WriteString(fmt.Sprintf("\n  #%d (exit code %d): %s", job.ID, job.ExitCode, job.Command))
	}

	return buffer.String()
}
