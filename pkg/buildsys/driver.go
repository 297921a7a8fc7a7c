package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/unitbuild/pkg/jobs"
)

// Phase names a step in the build of a single target.
type Phase string

const (
	CompilePhase Phase = "compile"
	LinkPhase    Phase = "link"
)

// PhaseError is returned when at least one command of a phase failed.
type PhaseError struct {
	Target string
	Phase  Phase
	Batch  *jobs.BatchError
}

var _ error = (*PhaseError)(nil)

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase of %s failed: %s", e.Phase, e.Target, e.Batch.Error())
}

func (e *PhaseError) Unwrap() error {
	return e.Batch
}

// Builder runs the commands for a parsed project.
type Builder struct {
	Project   *Project
	Toolchain *Toolchain
	// Scheduler runs the commands. It's not used during a dry run.
	Scheduler *jobs.Scheduler
	// BuildDir receives objects and artifacts. Relative paths are resolved against the
	// project root.
	BuildDir string
	// DryRun prints the commands to Out instead of running them.
	DryRun bool
	// CompDB is the path of the compilation database written after the build. Empty
	// disables it.
	CompDB string
	// Out receives the aggregated output of each phase. Defaults to os.Stdout.
	Out io.Writer

	compileCommands []CompileCommand
}

func (b *Builder) out() io.Writer {
	if b.Out == nil {
		return os.Stdout
	}
	return b.Out
}

func (b *Builder) buildDir() string {
	if filepath.IsAbs(b.BuildDir) {
		return filepath.Clean(b.BuildDir)
	}
	return filepath.Join(b.Project.Root, b.BuildDir)
}

// ArtifactPath returns where the library or executable of a target ends up.
func (b *Builder) ArtifactPath(t *Target) string {
	if t.Out != "" {
		return t.Out
	}
	return filepath.Join(b.buildDir(), ArtifactName(t.Kind, t.Name, b.Toolchain.GOOS))
}

// Resolve returns the named targets and all of their dependencies with every target
// placed after the targets it depends on. Without names, all targets are returned.
func (b *Builder) Resolve(names ...string) ([]*Target, error) {
	if len(names) == 0 {
		names = b.Project.Order
	}

	const (
		visiting = 1
		visited  = 2
	)

	state := make(map[string]int)
	order := make([]*Target, 0, len(b.Project.Targets))
	stack := make([]string, 0)

	var visit func(name, requiredBy string) error
	visit = func(name, requiredBy string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			chain := []string{}
			for idx, item := range stack {
				if item == name {
					chain = append(chain, stack[idx:]...)
					break
				}
			}
			return CycleError{Chain: append(chain, name)}
		}

		t, ok := b.Project.Targets[name]
		if !ok {
			return TargetMissing{Name: name, Required: requiredBy}
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range t.Deps {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = visited

		order = append(order, t)
		return nil
	}

	for _, name := range names {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// linkLibraries returns the artifacts of every library t transitively depends on.
// Dependents come before their dependencies to satisfy single pass linkers.
func (b *Builder) linkLibraries(t *Target) []string {
	seen := make(map[string]bool)
	postOrder := make([]*Target, 0)

	var walk func(*Target)
	walk = func(current *Target) {
		for _, name := range current.Deps {
			if seen[name] {
				continue
			}
			seen[name] = true

			dep, ok := b.Project.Targets[name]
			if !ok {
				continue
			}
			walk(dep)
			postOrder = append(postOrder, dep)
		}
	}
	walk(t)

	libs := make([]string, 0, len(postOrder))
	for idx := len(postOrder) - 1; idx >= 0; idx-- {
		if postOrder[idx].Kind.Linkable() {
			libs = append(libs, b.ArtifactPath(postOrder[idx]))
		}
	}
	return libs
}

// Build compiles and links the named targets (all targets if none are given) together
// with their dependencies. The first target with a failing phase stops the build.
func (b *Builder) Build(ctx context.Context, names ...string) (err error) {
	if !b.DryRun && b.Scheduler == nil {
		return eris.New("a scheduler is required unless this is a dry run")
	}

	targets, err := b.Resolve(names...)
	if err != nil {
		return err
	}

	b.compileCommands = make([]CompileCommand, 0)
	if b.CompDB != "" {
		defer func() {
			writeErr := WriteCompileCommands(b.CompDB, b.compileCommands)
			if err == nil {
				err = writeErr
			}
		}()
	}

	for _, t := range targets {
		log(ctx).Info().Str("target", t.Name).Msgf("Building %s", t.Kind)

		if err := b.buildTarget(ctx, t); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) buildTarget(ctx context.Context, t *Target) error {
	intDir := filepath.Join(b.buildDir(), "int", t.Name)
	artifact := b.ArtifactPath(t)

	if !b.DryRun {
		for _, dir := range []string{intDir, filepath.Dir(artifact)} {
			if err := os.MkdirAll(dir, 0770); err != nil {
				return eris.Wrapf(err, "failed to create %s", dir)
			}
		}
	}

	// every command line has to be valid before the first one is submitted
	objNames := objectNames(t.Srcs)
	objs := make([]string, len(t.Srcs))
	entries := make([]CompileCommand, len(t.Srcs))
	for idx, src := range t.Srcs {
		objs[idx] = filepath.Join(intDir, objNames[idx])

		command, err := quoteCommand(b.Toolchain.compileArgs(t, src, objs[idx]))
		if err != nil {
			return err
		}

		entries[idx] = CompileCommand{
			Directory: b.Project.Root,
			Command:   command,
			File:      src,
			Output:    objs[idx],
		}
	}

	for _, entry := range entries {
		b.compileCommands = append(b.compileCommands, entry)
		b.run(ctx, t, entry.Command)
	}

	if err := b.barrier(ctx, t, CompilePhase); err != nil {
		return err
	}

	var args []string
	if t.Kind == StaticLibrary {
		if !b.DryRun {
			// ar only adds members so stale objects would survive in an existing archive
			err := os.Remove(artifact)
			if err != nil && !eris.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "failed to remove old archive %s", artifact)
			}
		}
		args = b.Toolchain.archiveArgs(artifact, objs)
	} else {
		args = b.Toolchain.linkArgs(t, artifact, objs, b.linkLibraries(t))
	}

	command, err := quoteCommand(args)
	if err != nil {
		return err
	}
	b.run(ctx, t, command)

	return b.barrier(ctx, t, LinkPhase)
}

func (b *Builder) run(ctx context.Context, t *Target, command string) {
	if b.DryRun {
		fmt.Fprintln(b.out(), command)
		return
	}

	id := b.Scheduler.Submit(command)
	log(ctx).Debug().Str("target", t.Name).Int("job", id).Msg(command)
}

// barrier waits for every command of the current phase and prints their output.
func (b *Builder) barrier(ctx context.Context, t *Target, phase Phase) error {
	if b.DryRun {
		return nil
	}

	result, err := b.Scheduler.Await(ctx)
	if result != nil && result.Output != "" {
		fmt.Fprint(b.out(), result.Output)
	}
	if err != nil {
		return eris.Wrapf(err, "%s phase of %s was interrupted", phase, t.Name)
	}

	if failed := result.Err(); failed != nil {
		return &PhaseError{
			Target: t.Name,
			Phase:  phase,
			Batch:  failed.(*jobs.BatchError),
		}
	}

	log(ctx).Debug().
		Str("target", t.Name).
		Str("phase", string(phase)).
		Dur("elapsed", result.Elapsed).
		Msg("phase finished")
	return nil
}
