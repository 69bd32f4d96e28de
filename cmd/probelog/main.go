// Command probelog inspects, verifies and catalogs execution trace files.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/probelog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
