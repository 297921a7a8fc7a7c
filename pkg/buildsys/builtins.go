package buildsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
)

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	log(ctx.ctx).Info().
		Msgf("%s:%d:%d: %s", simplifyPath(ctx, ctx.filepath), pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	log(ctx.ctx).Warn().
		Msgf("%s:%d:%d: %s", simplifyPath(ctx, ctx.filepath), pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	info(thread, "%s", message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	warn(thread, "%s", message)
	return starlark.None, nil
}

func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message)
	if err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}

func resolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword argument %s", fn.Name(), kwargs[0][0])
	}

	if len(args) < 1 {
		return nil, eris.Errorf("%s: expects at least one argument", fn.Name())
	}

	parts := make([]string, len(args))
	for idx, path := range args {
		value, ok := path.(starlark.String)
		if !ok {
			return nil, eris.Errorf("%s: only accepts string arguments but argument %d was a %s", fn.Name(), idx, path.Type())
		}
		parts[idx] = value.GoString()
	}

	return starlark.String(normalizePath(getCtx(thread), parts...)), nil
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var fallback starlark.String

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "key", &key, "default?", &fallback)
	if err != nil {
		return nil, err
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	return starlark.String(value), nil
}

func readYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	path = normalizePath(ctx, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", simplifyPath(ctx, path))
	}

	var content interface{}
	err = yaml.Unmarshal(data, &content)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", simplifyPath(ctx, path))
	}

	return interfaceToStarlark(content)
}

func glob(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ctx := getCtx(thread)

	patterns, err := starlarkIterable2stringSlice(args, "patterns")
	if err != nil {
		return nil, eris.Wrap(err, fn.Name())
	}

	excludes := []string{}
	for _, kv := range kwargs {
		key := kv[0].(starlark.String).GoString()
		if key != "exclude" {
			return nil, eris.Errorf("%s: unexpected keyword argument %s", fn.Name(), key)
		}

		list, ok := kv[1].(starlarkIterable)
		if !ok {
			return nil, eris.Errorf("%s: exclude must be a list but got %s", fn.Name(), kv[1].Type())
		}

		excludes, err = starlarkIterable2stringSlice(list, "exclude")
		if err != nil {
			return nil, eris.Wrap(err, fn.Name())
		}
	}

	base := filepath.Dir(ctx.filepath)
	matches, err := expandPatterns(ctx, base, patterns)
	if err != nil {
		return nil, err
	}

	excluded, err := expandPatterns(ctx, base, excludes)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(excluded))
	for _, item := range excluded {
		skip[item] = true
	}

	seen := make(map[string]bool, len(matches))
	result := make([]string, 0, len(matches))
	for _, item := range matches {
		if !skip[item] && !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	sort.Strings(result)

	items := make([]starlark.Value, len(result))
	for idx, item := range result {
		items[idx] = starlark.String(item)
	}
	return starlark.NewList(items), nil
}

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = ScriptOption{
		DefaultValue: defaultValue.GoString(),
		Help:         help,
	}

	value, ok := ctx.optionValues[name]
	if ok {
		return starlark.String(value), nil
	}

	return defaultValue, nil
}

func target(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var kind string
	var srcs, deps, defines, includes, cflags, ldflags *starlark.List
	var out string

	ctx := getCtx(thread)
	if ctx.initPhase {
		return nil, eris.New("targets can only be declared inside configure()")
	}

	t := new(Target)
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &t.Name, "kind", &kind, "srcs", &srcs,
		"deps?", &deps, "defines?", &defines, "includes?", &includes, "cflags?", &cflags,
		"ldflags?", &ldflags, "out?", &out)
	if err != nil {
		return nil, err
	}

	if t.Name == "" {
		return nil, eris.Errorf("%s: name must not be empty", fn.Name())
	}

	if _, exists := ctx.targets[t.Name]; exists {
		return nil, eris.Errorf("%s: target %s has already been declared", fn.Name(), t.Name)
	}

	t.Kind, err = parseKind(kind)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", fn.Name(), t.Name)
	}

	t.Base = filepath.Dir(ctx.filepath)
	rawSrcs, err := starlarkIterable2stringSlice(srcs, "srcs")
	if err != nil {
		return nil, err
	}
	if len(rawSrcs) == 0 {
		warn(thread, "%s: target %s has no sources", fn.Name(), t.Name)
	}

	t.Srcs = make([]string, len(rawSrcs))
	for idx, src := range rawSrcs {
		t.Srcs[idx] = normalizePath(ctx, src)
	}

	t.Deps = []string{}
	if deps != nil {
		iter := deps.Iterate()
		var item starlark.Value
		for iter.Next(&item) {
			switch value := item.(type) {
			case starlark.String:
				t.Deps = append(t.Deps, value.GoString())
			case *Target:
				t.Deps = append(t.Deps, value.Name)
			default:
				iter.Done()
				return nil, eris.Errorf("%s: deps may only contain strings and targets but found %s", fn.Name(), item.Type())
			}
		}
		iter.Done()
	}

	t.Defines, err = starlarkIterable2stringSlice(defines, "defines")
	if err != nil {
		return nil, err
	}

	rawIncludes, err := starlarkIterable2stringSlice(includes, "includes")
	if err != nil {
		return nil, err
	}
	t.Includes = make([]string, len(rawIncludes))
	for idx, dir := range rawIncludes {
		t.Includes[idx] = normalizePath(ctx, dir)
	}

	t.CFlags, err = starlarkIterable2stringSlice(cflags, "cflags")
	if err != nil {
		return nil, err
	}

	t.LDFlags, err = starlarkIterable2stringSlice(ldflags, "ldflags")
	if err != nil {
		return nil, err
	}

	if out != "" {
		t.Out = normalizePath(ctx, out)
	}

	ctx.targets[t.Name] = t
	ctx.order = append(ctx.order, t.Name)
	return t, nil
}
