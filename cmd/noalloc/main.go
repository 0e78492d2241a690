// Command noalloc checks Java-like programs for allocation effect violations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/noalloc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
