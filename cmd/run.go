package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/unitbuild/pkg"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Runs the commands listed in a file (or stdin) in parallel",
	Long: `Every non-empty line that doesn't start with # is one command. All commands run as
a single batch; their output is printed once all of them finished.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		var input io.Reader = os.Stdin
		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrapf(err, "Failed to open %s", args[0])
			}
			defer f.Close()
			input = f
		}

		commands, err := readCommands(input)
		if err != nil {
			return err
		}

		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "Failed to retrieve the current working directory")
		}

		sched, err := env.newScheduler(wd)
		if err != nil {
			return err
		}

		for _, command := range commands {
			sched.Submit(command)
		}

		result, err := sched.Await(env.ctx)
		if result != nil {
			fmt.Print(result.Output)
		}
		if err != nil {
			return err
		}

		failed := result.Failed()
		if len(failed) > 0 {
			for _, job := range failed {
				pkg.PrintError(fmt.Sprintf("%s (exit code %d)", job.Command, job.ExitCode))
			}
			return result.Err()
		}

		pkg.PrintTask(fmt.Sprintf("%d commands finished in %s", len(result.Jobs), result.Elapsed))
		return nil
	},
}

func readCommands(r io.Reader) ([]string, error) {
	commands := make([]string, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "Failed to read commands")
	}
	return commands, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
