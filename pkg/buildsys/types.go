package buildsys

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// TargetKind determines what a target produces
type TargetKind string

const (
	StaticLibrary TargetKind = "static"
	SharedLibrary TargetKind = "shared"
	Executable    TargetKind = "executable"
)

func parseKind(value string) (TargetKind, error) {
	switch TargetKind(value) {
	case StaticLibrary, SharedLibrary, Executable:
		return TargetKind(value), nil
	default:
		return "", eris.Errorf("unknown target kind %s (must be one of static, shared or executable)", value)
	}
}

// Linkable reports whether other targets can link against this kind of target.
func (k TargetKind) Linkable() bool {
	return k == StaticLibrary || k == SharedLibrary
}

// Target contains the processed values passed to target() by the build script.
// All paths are absolute.
type Target struct {
	Name     string
	Kind     TargetKind
	Base     string
	Srcs     []string
	Deps     []string
	Defines  []string
	Includes []string
	CFlags   []string
	LDFlags  []string
	Out      string
}

// Project is the result of evaluating a build script.
type Project struct {
	Root    string
	File    string
	Targets map[string]*Target
	// Order lists the target names in declaration order
	Order   []string
	Options map[string]ScriptOption
}

type ScriptOption struct {
	DefaultValue string
	Help         string
}

// Implement starlark.Value for *Target so targets can be passed around as dependencies

// String returns a string representation of the target
func (t *Target) String() string {
	return fmt.Sprintf("<Target %s (%s)>", t.Name, t.Kind)
}

// Type always returns "target" to indicate this type
func (t *Target) Type() string {
	return "target"
}

// Freeze doesn't do anything since targets can't be modified from scripts
func (t *Target) Freeze() {}

// Truth always returns true
func (t *Target) Truth() starlark.Bool {
	return starlark.True
}

// Hash uses the target name since names are unique within a project
func (t *Target) Hash() (uint32, error) {
	return starlark.String(t.Name).Hash()
}
