package main

import (
	"os"

	"github.com/agentoven/boardroom/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
