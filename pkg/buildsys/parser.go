package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

type parserCtx struct {
	ctx          context.Context
	options      map[string]ScriptOption
	optionValues map[string]string
	filepath     string
	projectRoot  string
	targets      map[string]*Target
	order        []string
	initPhase    bool
}

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

// Parse executes the build script at filename and returns the declared options and
// targets. The script's global scope may declare options; targets have to be declared
// inside a configure() function.
func Parse(ctx context.Context, filename string, options map[string]string) (*Project, error) {
	filename, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	builtins := starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"resolve_path": starlark.NewBuiltin("resolve_path", resolvePath),
		"option":       starlark.NewBuiltin("option", option),
		"getenv":       starlark.NewBuiltin("getenv", getenv),
		"read_yaml":    starlark.NewBuiltin("read_yaml", readYaml),
		"glob":         starlark.NewBuiltin("glob", glob),
		"target":       starlark.NewBuiltin("target", target),
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}

	if options == nil {
		options = map[string]string{}
	}
	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  filepath.Dir(filename),
		options:      make(map[string]ScriptOption),
		optionValues: options,
		targets:      make(map[string]*Target),
		order:        make([]string, 0),
		initPhase:    true,
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read file")
	}

	displayName := simplifyPath(&threadCtx, filename)
	globals, err := starlark.ExecFile(thread, displayName, script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", displayName, evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", displayName)
	}

	configure, ok := globals["configure"]
	if !ok {
		return nil, eris.Errorf("%s did not declare a configure function", displayName)
	}

	configureFunc, ok := configure.(starlark.Callable)
	if !ok {
		return nil, eris.Errorf("%s did declare a configure value but it's not a function", displayName)
	}

	threadCtx.initPhase = false
	_, err = starlark.Call(thread, configureFunc, starlark.Tuple{}, nil)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.New(evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed configure call in %s", displayName)
	}

	for _, name := range threadCtx.order {
		for _, dep := range threadCtx.targets[name].Deps {
			if _, ok := threadCtx.targets[dep]; !ok {
				return nil, TargetMissing{Name: dep, Required: name}
			}
		}
	}

	return &Project{
		Root:    threadCtx.projectRoot,
		File:    filename,
		Targets: threadCtx.targets,
		Order:   threadCtx.order,
		Options: threadCtx.options,
	}, nil
}

// FindBuildFile searches the passed directory and all of its parents for a build.star file.
func FindBuildFile(dir string) (string, error) {
	path, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(path, "build.star")
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "Failed to check %s", candidate)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.New("No build.star file found")
		}
		path = parent
	}
}
