package cmd

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/unitbuild/pkg"
	"github.com/ngld/unitbuild/pkg/buildsys"
)

var buildCmd = &cobra.Command{
	Use:   "build [target...] [option=value...]",
	Short: "Builds the passed targets (or all targets) of the closest build.star",
	Long: `Searches the current directory and its parents for a build.star file, evaluates it
and builds the passed targets together with their dependencies. Arguments containing
a "=" set script options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry")
		if err != nil {
			return err
		}

		compDB, err := cmd.Flags().GetString("compdb")
		if err != nil {
			return err
		}

		listOptions, err := cmd.Flags().GetBool("options")
		if err != nil {
			return err
		}

		targets := make([]string, 0)
		options := make(map[string]string)
		for _, part := range args {
			pos := strings.Index(part, "=")
			if pos > -1 {
				options[part[:pos]] = part[pos+1:]
			} else {
				targets = append(targets, part)
			}
		}

		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "Failed to retrieve the current working directory")
		}

		buildFile, err := buildsys.FindBuildFile(wd)
		if err != nil {
			return err
		}

		project, err := buildsys.Parse(env.ctx, buildFile, options)
		if err != nil {
			return eris.Wrap(err, "Failed to parse build.star")
		}

		if listOptions {
			printOptions(project)
			return nil
		}

		for name := range options {
			if _, ok := project.Options[name]; !ok {
				env.logger.Warn().Msgf("Option %s is not used by %s", name, buildFile)
			}
		}

		toolchain, err := buildsys.NewToolchain(env.cfg, runtime.GOOS)
		if err != nil {
			return err
		}

		builder := &buildsys.Builder{
			Project:   project,
			Toolchain: toolchain,
			BuildDir:  env.cfg.BuildDir,
			DryRun:    dryRun,
			CompDB:    compDB,
			Out:       os.Stdout,
		}

		if !dryRun {
			builder.Scheduler, err = env.newScheduler(project.Root)
			if err != nil {
				return err
			}
		}

		err = builder.Build(env.ctx, targets...)
		if err != nil {
			env.logger.Error().Err(err).Msg("Build failed")
			return err
		}

		if !dryRun {
			pkg.PrintTask("Build finished")
		}
		return nil
	},
}

func printOptions(project *buildsys.Project) {
	if len(project.Options) == 0 {
		fmt.Println("This project has no options.")
		return
	}

	names := make([]string, 0, len(project.Options))
	maxNameLen := 0
	for name := range project.Options {
		names = append(names, name)
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
	}
	sort.Strings(names)

	fmt.Println("Available options:")
	lineFmt := fmt.Sprintf(" * %%-%ds %%s (default: %%q)\n", maxNameLen+3)
	for _, name := range names {
		option := project.Options[name]
		fmt.Printf(lineFmt, name+":", option.Help, option.DefaultValue)
	}
}

func init() {
	buildCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	buildCmd.Flags().String("compdb", "", "write a compile_commands.json to the passed path")
	buildCmd.Flags().Bool("options", false, "list the options declared by build.star and exit")

	rootCmd.AddCommand(buildCmd)
}
