package buildsys

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/unitbuild/pkg/config"
)

// Toolchain holds the programs and global flags used to build targets.
type Toolchain struct {
	CC      string
	CXX     string
	AR      string
	Std     string
	CFlags  []string
	LDFlags []string
	// GOOS selects the platform conventions (file names, shared library flags).
	GOOS string
}

// NewToolchain builds a Toolchain from the toolchain section of the configuration.
func NewToolchain(cfg *config.Config, goos string) (*Toolchain, error) {
	cflags, err := shell.Fields(cfg.Toolchain.CFlags, nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse toolchain.cflags")
	}

	ldflags, err := shell.Fields(cfg.Toolchain.LDFlags, nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse toolchain.ldflags")
	}

	return &Toolchain{
		CC:      cfg.Toolchain.CC,
		CXX:     cfg.Toolchain.CXX,
		AR:      cfg.Toolchain.AR,
		Std:     cfg.Toolchain.Std,
		CFlags:  cflags,
		LDFlags: ldflags,
		GOOS:    goos,
	}, nil
}

var cxxExtensions = map[string]bool{
	".cpp": true,
	".cc":  true,
	".cxx": true,
	".c++": true,
	".mm":  true,
}

func isCXX(src string) bool {
	return cxxExtensions[strings.ToLower(filepath.Ext(src))]
}

// usesCXX reports whether any of the target's sources is C++ in which case the C++
// driver has to link it.
func usesCXX(t *Target) bool {
	for _, src := range t.Srcs {
		if isCXX(src) {
			return true
		}
	}
	return false
}

// ArtifactName returns the file name of the library or executable produced for a target.
func ArtifactName(kind TargetKind, name, goos string) string {
	switch kind {
	case StaticLibrary:
		if goos == "windows" {
			return name + ".lib"
		}
		return "lib" + name + ".a"
	case SharedLibrary:
		switch goos {
		case "windows":
			return name + ".dll"
		case "darwin":
			return "lib" + name + ".dylib"
		default:
			return "lib" + name + ".so"
		}
	default:
		if goos == "windows" {
			return name + ".exe"
		}
		return name
	}
}

// objectNames maps every source to an object file name. Sources sharing a base name
// get a numeric suffix so they don't overwrite each other.
func objectNames(srcs []string) []string {
	result := make([]string, len(srcs))
	seen := make(map[string]int, len(srcs))

	for idx, src := range srcs {
		base := filepath.Base(src)
		stem := strings.TrimSuffix(base, filepath.Ext(base))

		count := seen[stem]
		seen[stem] = count + 1
		if count > 0 {
			stem = fmt.Sprintf("%s_%d", stem, count)
		}
		result[idx] = stem + ".o"
	}

	return result
}

func (tc *Toolchain) compileArgs(t *Target, src, obj string) []string {
	var args []string
	if isCXX(src) {
		args = []string{tc.CXX}
		if tc.Std != "" {
			args = append(args, "-std="+tc.Std)
		}
	} else {
		args = []string{tc.CC}
	}

	if t.Kind == SharedLibrary && tc.GOOS != "windows" {
		args = append(args, "-fPIC")
	}

	for _, define := range t.Defines {
		args = append(args, "-D"+define)
	}
	for _, dir := range t.Includes {
		args = append(args, "-I"+dir)
	}

	args = append(args, tc.CFlags...)
	args = append(args, t.CFlags...)
	return append(args, "-c", src, "-o", obj)
}

func (tc *Toolchain) archiveArgs(out string, objs []string) []string {
	args := []string{tc.AR, "rc", out}
	return append(args, objs...)
}

func (tc *Toolchain) linkArgs(t *Target, out string, objs, libs []string) []string {
	driver := tc.CC
	if usesCXX(t) {
		driver = tc.CXX
	}

	args := []string{driver}
	if t.Kind == SharedLibrary {
		if tc.GOOS == "darwin" {
			args = append(args, "-dynamiclib")
		} else {
			args = append(args, "-shared")
		}
	}

	args = append(args, "-o", out)
	args = append(args, objs...)
	args = append(args, libs...)
	args = append(args, tc.LDFlags...)
	return append(args, t.LDFlags...)
}

// quoteCommand turns an argument list into a command line that splits back into the
// same arguments.
func quoteCommand(args []string) (string, error) {
	parts := make([]string, len(args))
	for idx, arg := range args {
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", eris.Wrapf(err, "can't quote argument %q", arg)
		}
		parts[idx] = quoted
	}

	return strings.Join(parts, " "), nil
}
