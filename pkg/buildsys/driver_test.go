package buildsys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/shell"

	"github.com/ngld/unitbuild/pkg/jobs"
)

// recordingLauncher records every command and finishes it immediately. Commands
// containing fail exit with code 1.
type recordingLauncher struct {
	fail string

	mu       sync.Mutex
	commands [][]string
}

type finishedHandle struct {
	code   int
	output string
}

func (l *recordingLauncher) Launch(command string, notify func()) jobs.Handle {
	args, err := shell.Fields(command, nil)
	if err != nil {
		return &finishedHandle{code: 2, output: err.Error()}
	}

	l.mu.Lock()
	l.commands = append(l.commands, args)
	l.mu.Unlock()

	if l.fail != "" && strings.Contains(command, l.fail) {
		return &finishedHandle{code: 1, output: "error: " + filepath.Base(l.fail) + " is broken\n"}
	}
	return &finishedHandle{}
}

func (l *recordingLauncher) recorded() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([][]string{}, l.commands...)
}

func (h *finishedHandle) Poll() (jobs.Status, int) {
	return jobs.StatusExited, h.code
}

func (h *finishedHandle) CollectOutput() ([]byte, error) {
	return []byte(h.output), nil
}

func (h *finishedHandle) Kill() error {
	return nil
}

func newTestBuilder(t *testing.T, launcher jobs.Launcher) (*Builder, *bytes.Buffer) {
	t.Helper()

	root := sampleProject(t)
	project, err := Parse(context.Background(), filepath.Join(root, "build.star"), nil)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	builder := &Builder{
		Project:   project,
		Toolchain: testToolchain("linux"),
		BuildDir:  "build",
		Out:       out,
	}
	if launcher != nil {
		builder.Scheduler = jobs.New(
			jobs.Limit(2),
			jobs.UseLauncher(launcher),
			jobs.PollInterval(time.Millisecond),
		)
	}

	return builder, out
}

func programs(commands [][]string) []string {
	result := make([]string, len(commands))
	for idx, args := range commands {
		result[idx] = args[0] + " " + filepath.Base(args[len(args)-1])
	}
	return result
}

func TestResolveOrdersDependenciesFirst(t *testing.T) {
	project := &Project{
		Targets: map[string]*Target{
			"app":  {Name: "app", Deps: []string{"gui", "core"}},
			"gui":  {Name: "gui", Deps: []string{"core"}},
			"core": {Name: "core"},
			"tool": {Name: "tool"},
		},
		Order: []string{"app", "gui", "core", "tool"},
	}
	builder := &Builder{Project: project}

	targets, err := builder.Resolve("app")
	require.NoError(t, err)

	names := []string{}
	for _, target := range targets {
		names = append(names, target.Name)
	}
	assert.Equal(t, []string{"core", "gui", "app"}, names)

	targets, err = builder.Resolve()
	require.NoError(t, err)
	assert.Len(t, targets, 4)
}

func TestResolveDetectsCycles(t *testing.T) {
	project := &Project{
		Targets: map[string]*Target{
			"a": {Name: "a", Deps: []string{"b"}},
			"b": {Name: "b", Deps: []string{"c"}},
			"c": {Name: "c", Deps: []string{"b"}},
		},
	}

	_, err := (&Builder{Project: project}).Resolve("a")

	var cycle CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"b", "c", "b"}, cycle.Chain)
}

func TestResolveUnknownTarget(t *testing.T) {
	project := &Project{Targets: map[string]*Target{}}

	_, err := (&Builder{Project: project}).Resolve("missing")

	var missing TargetMissing
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "missing", missing.Name)
}

func TestBuildRunsPhasesInOrder(t *testing.T) {
	launcher := &recordingLauncher{}
	builder, _ := newTestBuilder(t, launcher)

	require.NoError(t, builder.Build(context.Background(), "app"))

	assert.Equal(t, []string{
		"cc a.o",
		"cc b.o",
		"ar b.o",
		"c++ main.o",
		"c++ -lm",
	}, programs(launcher.recorded()))

	commands := launcher.recorded()
	buildDir := filepath.Join(builder.Project.Root, "build")
	assert.Equal(t, filepath.Join(buildDir, "libcore.a"), commands[2][2])

	link := commands[4]
	assert.Contains(t, link, filepath.Join(buildDir, "int", "app", "main.o"))
	assert.Contains(t, link, filepath.Join(buildDir, "libcore.a"))

	assert.DirExists(t, filepath.Join(buildDir, "int", "core"))
}

func TestFailingCompileStopsBeforeLinking(t *testing.T) {
	launcher := &recordingLauncher{fail: filepath.Join("src", "a.c")}
	builder, out := newTestBuilder(t, launcher)

	err := builder.Build(context.Background(), "app")
	require.Error(t, err)

	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, "core", phaseErr.Target)
	assert.Equal(t, CompilePhase, phaseErr.Phase)

	var batchErr *jobs.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Len(t, batchErr.Failed, 1)
	assert.Equal(t, 2, batchErr.Total)

	// both units were compiled, nothing was archived or linked
	assert.Equal(t, []string{"cc a.o", "cc b.o"}, programs(launcher.recorded()))
	assert.Equal(t, "error: a.c is broken\n", out.String())
}

func TestDryRunOnlyPrints(t *testing.T) {
	builder, out := newTestBuilder(t, nil)
	builder.DryRun = true

	require.NoError(t, builder.Build(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "ar rc "))

	assert.NoDirExists(t, filepath.Join(builder.Project.Root, "build"))
}

func TestBuildWritesCompileCommands(t *testing.T) {
	builder, _ := newTestBuilder(t, &recordingLauncher{})
	builder.CompDB = filepath.Join(t.TempDir(), "compile_commands.json")

	require.NoError(t, builder.Build(context.Background()))

	data, err := os.ReadFile(builder.CompDB)
	require.NoError(t, err)

	var entries []CompileCommand
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 3)

	assert.Equal(t, builder.Project.Root, entries[0].Directory)
	assert.Equal(t, filepath.Join(builder.Project.Root, "src", "a.c"), entries[0].File)
	assert.Contains(t, entries[2].Command, "-std=c++17")
}

func TestMergeCompileCommands(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	merged := filepath.Join(dir, "merged.json")

	require.NoError(t, WriteCompileCommands(first, []CompileCommand{{Directory: "/a", Command: "cc a.c", File: "/a/a.c"}}))
	require.NoError(t, WriteCompileCommands(second, []CompileCommand{{Directory: "/b", Command: "cc b.c", File: "/b/b.c"}}))

	require.NoError(t, MergeCompileCommands(merged, first, second))

	data, err := os.ReadFile(merged)
	require.NoError(t, err)

	var entries []CompileCommand
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "/a/a.c", entries[0].File)
	assert.Equal(t, "/b/b.c", entries[1].File)

	assert.Error(t, MergeCompileCommands(merged))
	assert.Error(t, MergeCompileCommands(merged, filepath.Join(dir, "missing.json")))
}

func TestUnquotableSourceSubmitsNothing(t *testing.T) {
	root := t.TempDir()
	launcher := &recordingLauncher{}
	sched := jobs.New(jobs.UseLauncher(launcher), jobs.PollInterval(time.Millisecond))

	builder := &Builder{
		Project: &Project{
			Root: root,
			Targets: map[string]*Target{
				"core": {
					Name: "core",
					Kind: StaticLibrary,
					Srcs: []string{filepath.Join(root, "a.c"), filepath.Join(root, "b\x00.c")},
				},
			},
			Order: []string{"core"},
		},
		Toolchain: testToolchain("linux"),
		Scheduler: sched,
		BuildDir:  "build",
		Out:       &bytes.Buffer{},
	}

	require.Error(t, builder.Build(context.Background()))
	assert.Empty(t, launcher.recorded())

	queued, running := sched.Counts()
	assert.Zero(t, queued)
	assert.Zero(t, running)
}
