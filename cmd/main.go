// Package cmd implements the unitbuild command line interface
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "unitbuild",
	Short: "Parallel build driver for C and C++ projects",
	Long: `unitbuild reads the closest build.star file and compiles, archives and links the
declared targets. Compiler invocations run in parallel; every phase waits for all of its
commands before the next one starts.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (defaults to unitbuild.toml, unitbuild.yml or unitbuild.yaml)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.Bool("log-json", false, "print log messages as JSON")
	flags.String("progress", "", "progress display (bar, glyph or none)")
	flags.IntP("jobs", "j", 0, "maximum number of parallel commands (0 = number of CPUs)")
}

// Execute runs the root command
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
