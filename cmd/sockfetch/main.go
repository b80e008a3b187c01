package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nczempin/sockfetch/cli"
)

func main() {
	// The first signal aborts a pending connect; a second one ends the process.
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
