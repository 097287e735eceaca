package main

import (
	"context"
	"fmt"
	"os"

	"inditrade-paper/internal/cli"
	"inditrade-paper/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	if err := cli.NewRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
