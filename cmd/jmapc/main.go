// Command jmapc builds and sends typed JMAP request batches.
package main

import (
	"os"

	"github.com/roach88/jmapc/internal/cli"
	_ "github.com/roach88/jmapc/internal/tasks"
)

func main() {
	err := cli.NewRootCommand().Execute()
	os.Exit(cli.GetExitCode(err))
}
