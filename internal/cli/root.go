// Package cli implements the boardroom command-line client.
package cli

import (
	"fmt"

	"github.com/agentoven/boardroom/internal/config"
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

type app struct {
	cfgFile string
}

// config resolves configuration for cmd. --server and --api-key override
// client.url and client.api_key from the file or environment.
func (a *app) config(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper(a.cfgFile)
	for key, name := range map[string]string{
		"client.url":     "server",
		"client.api_key": "api-key",
	} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	return config.FromViper(v)
}

// NewRootCmd builds the boardroom command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "boardroom",
		Short:         "Boardroom: ask a panel of executive advisors",
		Long:          "boardroom sends a business question to the primary executive advisor, follows up with the executives it asks for, and prints the synthesized recommendation as it streams in.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "path to boardroom.yaml")
	pf.String("server", "", "boardroom server URL (default from client.url)")
	pf.String("api-key", "", "API key sent to the server")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newAskCmd(a),
		newAdvisorsCmd(a),
		newServeCmd(a),
	)

	return rootCmd
}
