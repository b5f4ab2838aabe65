package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/spf13/cobra"
)

func newAdvisorsCmd(a *app) *cobra.Command {
	var (
		local  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "advisors",
		Short: "List the executive advisors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}

			var profiles []models.AdvisorProfile
			if local {
				profiles = advisors.NewDefaultRegistry().Profiles()
			} else {
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				c := &Client{BaseURL: cfg.Client.URL, APIKey: cfg.Client.APIKey}
				if profiles, err = c.Advisors(ctx); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(profiles)
			}
			_, err = fmt.Fprintln(out, renderProfiles(profiles, newStyles()))
			return err
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "read the built-in catalog instead of calling a server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")

	return cmd
}
