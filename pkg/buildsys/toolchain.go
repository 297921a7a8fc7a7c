package buildsys

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"

	"github.com/ngld/unitbuild/pkg/config"
	"github.com/ngld/unitbuild/pkg/jobs"
)

// ToolInfo describes a toolchain program found on the PATH.
type ToolInfo struct {
	Name    string
	Path    string
	Version *semver.Version
}

var versionPattern = regexp.MustCompile(`\b(\d+)\.(\d+)(?:\.(\d+))?\b`)

// ParseVersion extracts the first version number from the output of `<compiler> --version`.
func ParseVersion(output string) (*semver.Version, error) {
	for _, line := range strings.Split(output, "\n") {
		match := versionPattern.FindString(line)
		if match != "" {
			return semver.NewVersion(match)
		}
	}

	return nil, eris.New("no version number found")
}

var (
	defaultLookPath = exec.LookPath
	lookPath        = defaultLookPath
)

// CheckToolchain makes sure the configured compilers and archiver can be found, asks
// both compilers for their version and checks those against toolchain.min_version.
// The version queries run as one batch on sched.
func CheckToolchain(ctx context.Context, sched *jobs.Scheduler, cfg *config.Config) ([]ToolInfo, error) {
	tools := []ToolInfo{
		{Name: cfg.Toolchain.CC},
		{Name: cfg.Toolchain.CXX},
		{Name: cfg.Toolchain.AR},
	}

	for idx := range tools {
		path, err := lookPath(tools[idx].Name)
		if err != nil {
			return nil, eris.Wrapf(err, "%s not found", tools[idx].Name)
		}
		tools[idx].Path = path
	}

	var constraint *semver.Constraints
	if cfg.Toolchain.MinVersion != "" {
		var err error
		constraint, err = semver.NewConstraint(cfg.Toolchain.MinVersion)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid version constraint %s", cfg.Toolchain.MinVersion)
		}
	}

	// ar doesn't have a portable way to print its version
	compilers := tools[:2]
	ids := make([]int, len(compilers))
	for idx, tool := range compilers {
		command, err := quoteCommand([]string{tool.Path, "--version"})
		if err != nil {
			return nil, err
		}
		ids[idx] = sched.Submit(command)
	}

	result, err := sched.Await(ctx)
	if err != nil {
		return nil, err
	}

	for idx := range compilers {
		job := result.Job(ids[idx])
		if job == nil {
			return nil, eris.Errorf("version query for %s got lost", compilers[idx].Name)
		}
		if job.Failed() {
			return nil, eris.Errorf("%s --version failed with exit code %d:\n%s", compilers[idx].Name, job.ExitCode, job.Output)
		}

		version, err := ParseVersion(string(job.Output))
		if err != nil {
			return nil, eris.Wrapf(err, "failed to determine the version of %s", compilers[idx].Name)
		}
		compilers[idx].Version = version

		log(ctx).Info().Msgf("Found %s %s at %s", compilers[idx].Name, version, compilers[idx].Path)

		if constraint != nil && !constraint.Check(version) {
			return nil, eris.Errorf("%s %s does not satisfy %s", compilers[idx].Name, version, cfg.Toolchain.MinVersion)
		}
	}

	return tools, nil
}
