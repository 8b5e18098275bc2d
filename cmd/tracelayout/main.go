// Command tracelayout compiles trace descriptions into serialization
// layouts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tracelayout/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own ExitErrors; anything else comes from cobra.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
