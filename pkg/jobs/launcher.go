package jobs

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/shell"
)

// Status is the liveness of a launched command as reported by Handle.Poll.
type Status int

const (
	StatusRunning Status = iota
	StatusExited
)

// Handle is a started command. A handle is only ever used by one goroutine at a time.
type Handle interface {
	// Poll reports whether the command is still running and, if it isn't, its exit code.
	// It never blocks.
	Poll() (Status, int)
	// CollectOutput returns everything the command wrote and releases the capture sink.
	// It may only be called once, after Poll reported StatusExited.
	CollectOutput() ([]byte, error)
	// Kill terminates the command if it's still running.
	Kill() error
}

// Launcher starts commands. notify is called once, from any goroutine, when the command
// has terminated. Launch must never fail: problems are reported through a handle that
// has already exited with ExitLaunchFailed and carries a diagnostic as its output.
type Launcher interface {
	Launch(command string, notify func()) Handle
}

// ProcessLauncher starts commands as child processes of the current process. The command
// line is split into arguments with POSIX shell rules (quotes, escapes and $VAR
// expansion) but no shell is involved.
type ProcessLauncher struct {
	// Dir is the working directory of the child processes. Empty means the current one.
	Dir string
	// Env replaces the environment of the child processes if it isn't nil.
	Env []string
	// TempDir is where capture sinks are created. Empty means os.TempDir().
	TempDir string
	// Rewrite can replace the argument list before the process is started.
	Rewrite func(args []string) []string
}

var _ Launcher = (*ProcessLauncher)(nil)

func (l *ProcessLauncher) lookupEnv(name string) string {
	prefix := name + "="
	for _, item := range l.Env {
		if strings.HasPrefix(item, prefix) {
			return item[len(prefix):]
		}
	}

	return ""
}

// Launch implements Launcher
func (l *ProcessLauncher) Launch(command string, notify func()) Handle {
	var env func(string) string
	if l.Env != nil {
		env = l.lookupEnv
	}

	args, err := shell.Fields(command, env)
	if err != nil {
		return failedLaunch(ExitLaunchFailed, eris.Wrapf(err, "failed to parse command %s", command), notify)
	}

	if len(args) == 0 {
		return failedLaunch(ExitLaunchFailed, eris.New("empty command"), notify)
	}

	if l.Rewrite != nil {
		args = l.Rewrite(args)
		if len(args) == 0 {
			return failedLaunch(ExitLaunchFailed, eris.Errorf("rewriting %s produced an empty command", command), notify)
		}
	}

	// The child writes straight into the file. Since there's no pipe in between, it
	// can't block on us not reading fast enough.
	sink, err := os.CreateTemp(l.TempDir, "unitbuild-*.log")
	if err != nil {
		return failedLaunch(ExitLaunchFailed, eris.Wrap(err, "failed to create output sink"), notify)
	}

	proc := exec.Command(args[0], args[1:]...)
	proc.Dir = l.Dir
	proc.Env = l.Env
	proc.Stdout = sink
	proc.Stderr = sink

	handle := &processHandle{
		cmd:  proc,
		sink: sink,
		done: make(chan struct{}),
	}

	err = proc.Start()
	if err != nil {
		fmt.Fprintf(sink, "failed to start %s: %s\n", args[0], err)
		handle.exitCode = ExitLaunchFailed
		close(handle.done)
		if notify != nil {
			notify()
		}
		return handle
	}

	go handle.wait(notify)
	return handle
}

type processHandle struct {
	cmd       *exec.Cmd
	sink      *os.File
	done      chan struct{}
	exitCode  int
	collected bool
}

func (h *processHandle) wait(notify func()) {
	err := h.cmd.Wait()
	h.exitCode = exitCodeOf(h.cmd, err)
	close(h.done)

	if notify != nil {
		notify()
	}
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		// -1 if the process was terminated by a signal
		return cmd.ProcessState.ExitCode()
	}

	if err != nil {
		return ExitLaunchFailed
	}
	return 0
}

func (h *processHandle) Poll() (Status, int) {
	select {
	case <-h.done:
		return StatusExited, h.exitCode
	default:
		return StatusRunning, 0
	}
}

func (h *processHandle) CollectOutput() ([]byte, error) {
	if status, _ := h.Poll(); status != StatusExited {
		return nil, eris.New("the command is still running")
	}

	if h.collected {
		return nil, eris.New("output has already been collected")
	}
	h.collected = true

	name := h.sink.Name()
	defer os.Remove(name)
	defer h.sink.Close()

	_, err := h.sink.Seek(0, io.SeekStart)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to rewind %s", name)
	}

	data, err := io.ReadAll(h.sink)
	if err != nil {
		return data, eris.Wrapf(err, "failed to read %s", name)
	}

	return data, nil
}

func (h *processHandle) Kill() error {
	if status, _ := h.Poll(); status == StatusExited || h.cmd.Process == nil {
		return nil
	}

	err := h.cmd.Process.Kill()
	if err != nil && !eris.Is(err, os.ErrProcessDone) {
		return eris.Wrap(err, "failed to kill process")
	}
	return nil
}

// exitedHandle stands in for commands that never ran.
type exitedHandle struct {
	code   int
	output []byte
}

func failedLaunch(code int, err error, notify func()) Handle {
	if notify != nil {
		notify()
	}

	return &exitedHandle{
		code:   code,
		output: []byte(err.Error() + "\n"),
	}
}

func (h *exitedHandle) Poll() (Status, int) {
	return StatusExited, h.code
}

func (h *exitedHandle) CollectOutput() ([]byte, error) {
	return h.output, nil
}

func (h *exitedHandle) Kill() error {
	return nil
}

// canceledLauncher finishes every job it's given without running anything.
type canceledLauncher struct{}

func (canceledLauncher) Launch(command string, notify func()) Handle {
	return failedLaunch(ExitCanceled, eris.New("canceled before launch"), notify)
}
