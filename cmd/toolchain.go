package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ngld/unitbuild/pkg"
	"github.com/ngld/unitbuild/pkg/buildsys"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Checks that the configured compilers and archiver are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		sched, err := env.newScheduler(wd)
		if err != nil {
			return err
		}

		pkg.PrintTask("Checking toolchain")
		tools, err := buildsys.CheckToolchain(env.ctx, sched, env.cfg)
		if err != nil {
			pkg.PrintError(err.Error())
			return err
		}

		for _, tool := range tools {
			if tool.Version != nil {
				pkg.PrintSubtask(fmt.Sprintf("%s %s (%s)", tool.Name, tool.Version, tool.Path))
			} else {
				pkg.PrintSubtask(fmt.Sprintf("%s (%s)", tool.Name, tool.Path))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolchainCmd)
}
