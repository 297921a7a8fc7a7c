package cmd

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/unitbuild/pkg"
	"github.com/ngld/unitbuild/pkg/buildsys"
	"github.com/ngld/unitbuild/pkg/bundle"
)

var packCmd = &cobra.Command{
	Use:   "pack archive_name content_directory",
	Short: "Recursively packs the content of the passed directory into a .tar.xz or .tar.br archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return eris.New("Expected 2 arguments!")
		}

		count, err := bundle.Pack(args[0], args[1])
		if err != nil {
			return err
		}

		pkg.PrintTask(fmt.Sprintf("Packed %d files into %s", count, args[0]))
		return nil
	},
}

var mergeCompileCommandsCmd = &cobra.Command{
	Use:   "merge-compile-commands <output file> <input files...>",
	Short: "Merges several compile_commands.json files. Assumes that only absolute paths are used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return eris.Errorf("Expected at least 2 arguments but got %d!", len(args))
		}

		return buildsys.MergeCompileCommands(args[0], args[1:]...)
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(mergeCompileCommandsCmd)
}
