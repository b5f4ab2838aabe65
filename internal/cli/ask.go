package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/config"
	"github.com/agentoven/boardroom/internal/validate"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/agentoven/boardroom/pkg/server"
	"github.com/spf13/cobra"
)

type askOptions struct {
	executive string
	company   string
	mission   string
	industry  string
	local     bool
	asJSON    bool
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the executive panel a question",
		Long:  "ask streams a consultation: advisor progress, each advisor's response, and the synthesized recommendation. With --local the consultation runs in-process against the configured completion provider instead of a server.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			req := opts.request(strings.Join(args, " "))
			return runAsk(cmd.Context(), cmd, cfg, opts, req)
		},
	}

	cmd.Flags().StringVar(&opts.executive, "executive", "", "also consult this executive (title or abbreviation, e.g. CFO)")
	cmd.Flags().StringVar(&opts.company, "company", "", "company name")
	cmd.Flags().StringVar(&opts.mission, "mission", "", "company mission statement")
	cmd.Flags().StringVar(&opts.industry, "industry", "", "company industry")
	cmd.Flags().BoolVar(&opts.local, "local", false, "run the consultation in-process instead of calling a server")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print raw events as JSON lines")

	return cmd
}

func (o *askOptions) request(query string) models.ConsultRequest {
	req := models.ConsultRequest{Executive: o.executive, Query: query}
	if o.company != "" || o.mission != "" || o.industry != "" {
		req.CompanyContext = &models.CompanyContext{
			CompanyName:      o.company,
			MissionStatement: o.mission,
			Industry:         o.industry,
		}
	}
	return req
}

func runAsk(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *askOptions, req models.ConsultRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	view := newProgress(out)

	var failure error
	handle := func(ev models.Event, raw []byte) error {
		if opts.asJSON {
			if _, err := fmt.Fprintf(out, "%s\n", raw); err != nil {
				return err
			}
		}
		switch ev.Type {
		case models.EventStatus:
			if !opts.asJSON {
				view.status(ev.ExecutiveStatuses)
			}
		case models.EventResponse:
			if !opts.asJSON {
				view.status(ev.ExecutiveStatuses)
				view.response(ev.Executive, ev.Response)
			}
		case models.EventFinal:
			ir, err := finalSynthesis(raw)
			if err != nil {
				return err
			}
			if !opts.asJSON {
				view.status(ev.ExecutiveStatuses)
				view.final(ev, ir)
			}
		case models.EventError:
			if !opts.asJSON {
				view.failure(ev)
			}
			failure = fmt.Errorf("consultation failed: %s", ev.Message)
		}
		return nil
	}

	var err error
	if opts.local {
		err = consultLocal(ctx, cfg, cmd.ErrOrStderr(), req, handle)
	} else {
		c := &Client{BaseURL: cfg.Client.URL, APIKey: cfg.Client.APIKey}
		err = c.Consult(ctx, req, handle)
	}
	if failure != nil {
		return failure
	}
	return err
}

// finalSynthesis re-checks the integrated response carried by a final
// event before it is shown.
func finalSynthesis(raw []byte) (*models.IntegratedResponse, error) {
	var ev struct {
		Synthesis json.RawMessage `json:"synthesis"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode final event: %w", err)
	}
	ir, err := validate.ValidateJSON(ev.Synthesis)
	if err != nil {
		return nil, fmt.Errorf("final response rejected: %w", err)
	}
	return ir, nil
}

func consultLocal(ctx context.Context, cfg *config.Config, logOut io.Writer, req models.ConsultRequest, handle EventHandler) error {
	server.SetupLogging(cfg.Log, logOut)

	svc, err := completion.NewService(cfg.Completion)
	if err != nil {
		return fmt.Errorf("init completion: %w", err)
	}
	orch := server.NewOrchestrator(cfg, svc)

	return orch.Run(ctx, req, func(ev models.Event) error {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return handle(ev, raw)
	})
}
