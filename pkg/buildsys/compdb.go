package buildsys

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// CompileCommand is one entry of a clang compilation database (compile_commands.json).
type CompileCommand struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
	Output    string `json:"output,omitempty"`
}

// WriteCompileCommands stores the passed entries as a compilation database.
func WriteCompileCommands(path string, entries []CompileCommand) error {
	if entries == nil {
		entries = []CompileCommand{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode compile commands")
	}

	err = os.WriteFile(path, data, 0660)
	if err != nil {
		return eris.Wrapf(err, "failed to write to %s", path)
	}

	return nil
}

// MergeCompileCommands concatenates several compilation databases into output. Entries
// are passed through as-is so paths should be absolute.
func MergeCompileCommands(output string, inputs ...string) error {
	if len(inputs) == 0 {
		return eris.New("no input files passed")
	}

	merged := make([]json.RawMessage, 0)
	for _, fpath := range inputs {
		data, err := os.ReadFile(fpath)
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", fpath)
		}

		var chunk []json.RawMessage
		err = json.Unmarshal(data, &chunk)
		if err != nil {
			return eris.Wrapf(err, "failed to decode %s", fpath)
		}

		merged = append(merged, chunk...)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode output")
	}

	err = os.WriteFile(output, data, 0660)
	if err != nil {
		return eris.Wrapf(err, "failed to write to %s", output)
	}

	return nil
}
