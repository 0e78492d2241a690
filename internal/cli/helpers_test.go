package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// One allocation in a NoAlloc method.
const allocatingCUE = `class: Buffer: methods: {
    "fill()": {annotations: ["NoAlloc"], body: [{new: "Integer"}]}
    "peek()": {annotations: ["NoAlloc"]}
}
`

const cleanCUE = `class: Buffer: methods: {
    "fill()": {annotations: ["NoAlloc"], body: [{call: "Buffer.peek()"}]}
    "peek()": {annotations: ["NoAlloc"]}
    "log()": {body: [{new: "String"}]}
}
`

// Impl.run() inherits NoAlloc from Base and MayAlloc from Task.
const ambiguousCUE = `class: Base: methods: "run()": {annotations: ["NoAlloc"]}
interface: Task: methods: "run()": {annotations: ["MayAlloc"]}
class: Impl: {
    extends: "Base"
    implements: ["Task"]
    methods: "run()": {}
}
`

const cycleCUE = `class: A: extends: "B"
class: B: extends: "A"
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse decodes a CLIResponse whose data has type T.
func decodeResponse[T any](t *testing.T, output string) (CLIResponse, T) {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &raw), "output: %s", output)

	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return raw.CLIResponse, data
}
