// Boardroom server: streams executive-advisor consultations over SSE and
// WebSocket.
//
// Configuration comes from boardroom.yaml (optional) and BOARDROOM_* env
// vars; see internal/config for keys. Flags are those of `boardroom serve`.
package main

import (
	"os"

	"github.com/agentoven/boardroom/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	root.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
