package jobs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultPollInterval is the fallback tick between two polls of the running jobs.
const DefaultPollInterval = 50 * time.Millisecond

// Option configures a Scheduler
type Option func(*Scheduler)

// Limit overrides the detected concurrency limit.
func Limit(n int) Option {
	return func(s *Scheduler) {
		s.policy.Override = n
	}
}

// UsePolicy replaces the concurrency policy.
func UsePolicy(p Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// UseLauncher replaces the default ProcessLauncher.
func UseLauncher(l Launcher) Option {
	return func(s *Scheduler) {
		s.launcher = l
	}
}

// UseReporter sets the progress reporter.
func UseReporter(r Reporter) Option {
	return func(s *Scheduler) {
		s.reporter = r
	}
}

// PollInterval sets the interval between two polls if no process exit woke the scheduler
// up earlier.
func PollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// OnComplete registers a callback that is called for every finished job. It runs on the
// goroutine that called Await and may submit more jobs.
func OnComplete(fn func(*Job)) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// Logger sets the logger used for scheduling events.
func Logger(l *zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

type flight struct {
	job    *Job
	handle Handle
	killed bool
}

// Scheduler admits, runs and drains jobs while keeping at most Limit() of them running.
//
// Jobs are admitted in submission order. Submit may be called from any goroutine; the
// running jobs are only ever polled by whoever holds the scheduler's lock.
type Scheduler struct {
	policy     Policy
	launcher   Launcher
	reporter   Reporter
	interval   time.Duration
	onComplete func(*Job)
	log        *zerolog.Logger

	limit int
	slots *semaphore.Weighted
	wake  chan struct{}

	mu         sync.Mutex
	nextID     int
	pending    []*Job
	inflight   map[int]*flight
	results    []*Job
	submitted  int
	finished   int
	totalKnown bool
	awaiting   bool
	batch      string
	batchStart time.Time
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		launcher:   &ProcessLauncher{},
		reporter:   NopReporter{},
		interval:   DefaultPollInterval,
		log:        &nopLogger,
		inflight:   make(map[int]*flight),
		wake:       make(chan struct{}, 1),
		totalKnown: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.limit = s.policy.Limit()
	s.slots = semaphore.NewWeighted(int64(s.limit))
	return s
}

// Limit returns the maximum number of jobs that may run at the same time.
func (s *Scheduler) Limit() int {
	return s.limit
}

// Counts returns the number of queued and running jobs.
func (s *Scheduler) Counts() (queued, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending), len(s.inflight)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Submit queues a command and returns the id of its job. Unless a call to Await is in
// progress, free slots are filled right away so the command starts while the caller is
// still submitting more work.
func (s *Scheduler) Submit(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.batch == "" {
		s.batch = nanoid.New()
		s.batchStart = time.Now()
	}

	s.nextID++
	job := &Job{
		ID:        s.nextID,
		Command:   command,
		State:     Queued,
		Submitted: time.Now(),
	}
	s.pending = append(s.pending, job)
	s.submitted++

	if s.awaiting {
		// the batch size is no longer known upfront
		s.totalKnown = false
		s.signal()
	} else {
		s.admitLocked(s.launcher)
	}

	return job.ID
}

func (s *Scheduler) admitLocked(launcher Launcher) {
	for len(s.pending) > 0 && s.slots.TryAcquire(1) {
		job := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]

		job.advance(Running)
		job.Started = time.Now()
		s.inflight[job.ID] = &flight{
			job:    job,
			handle: launcher.Launch(job.Command, s.signal),
		}

		s.log.Debug().
			Str("batch", s.batch).
			Int("job", job.ID).
			Msg(job.Command)
	}
}

func (s *Scheduler) pollLocked() []*Job {
	var finished []*Job

	for id, f := range s.inflight {
		status, code := f.handle.Poll()
		if status != StatusExited {
			continue
		}

		output, err := f.handle.CollectOutput()
		if err != nil {
			s.log.Warn().Err(err).Int("job", id).Msg("Failed to collect output")
			output = append(output, []byte(err.Error()+"\n")...)
		}

		delete(s.inflight, id)
		s.slots.Release(1)

		job := f.job
		if f.killed {
			code = ExitCanceled
		}
		job.ExitCode = code
		job.Output = output
		job.Finished = time.Now()
		job.advance(Done)

		if code == ExitLaunchFailed {
			s.log.Warn().Int("job", id).Msgf("Failed to launch %s", job.Command)
		}
		s.log.Debug().
			Str("batch", s.batch).
			Int("job", id).
			Int("exit", code).
			Dur("duration", job.Duration()).
			Msg("job finished")

		s.results = append(s.results, job)
		finished = append(finished, job)
	}

	return finished
}

func (s *Scheduler) killLocked() {
	for id, f := range s.inflight {
		// jobs that exited since the last poll keep their real exit code
		if status, _ := f.handle.Poll(); status != StatusRunning {
			continue
		}

		f.killed = true
		err := f.handle.Kill()
		if err != nil {
			s.log.Warn().Err(err).Int("job", id).Msg("Failed to kill job")
		}
	}
}

// Await blocks until every submitted job is Done and returns them in completion order.
// Afterwards the scheduler is idle again and the next Submit starts a new batch, so
// Await separates build phases from each other.
//
// Cancelling ctx kills all running jobs; jobs that are still queued are finished without
// being run. Both end up with ExitCanceled and Await returns the complete result together
// with ctx.Err().
func (s *Scheduler) Await(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return nil, eris.New("Await is already in progress")
	}
	s.awaiting = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	launcher := s.launcher
	ctxDone := ctx.Done()
	var ctxErr error

	for {
		s.mu.Lock()
		s.admitLocked(launcher)
		finished := s.pollLocked()
		s.admitLocked(launcher)

		total := 0
		if s.totalKnown {
			total = s.submitted
		}
		base := s.finished
		s.finished += len(finished)
		s.mu.Unlock()

		for idx, job := range finished {
			s.reporter.JobDone(job, base+idx+1, total)
			if s.onComplete != nil {
				s.onComplete(job)
			}
		}

		s.mu.Lock()
		if len(s.pending) == 0 && len(s.inflight) == 0 {
			result := s.finishBatchLocked()
			s.mu.Unlock()

			s.reporter.BatchDone(len(result.Jobs))
			return result, ctxErr
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ticker.C:
		case <-ctxDone:
			ctxErr = ctx.Err()
			ctxDone = nil
			launcher = canceledLauncher{}

			s.mu.Lock()
			s.killLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) finishBatchLocked() *Result {
	var output strings.Builder
	for _, job := range s.results {
		output.Write(job.Output)
	}

	result := &Result{
		Batch:  s.batch,
		Jobs:   s.results,
		Output: output.String(),
	}
	if result.Jobs == nil {
		result.Jobs = []*Job{}
	}
	if !s.batchStart.IsZero() {
		result.Elapsed = time.Since(s.batchStart)
	}

	if s.submitted > 0 {
		s.log.Info().
			Str("batch", s.batch).
			Int("jobs", len(result.Jobs)).
			Int("failed", len(result.Failed())).
			Dur("elapsed", result.Elapsed).
			Msg("batch finished")
	}

	s.results = nil
	s.submitted = 0
	s.finished = 0
	s.totalKnown = true
	s.awaiting = false
	s.batch = ""
	s.batchStart = time.Time{}

	return result
}
