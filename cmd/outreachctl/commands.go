package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unclebandit/smsleopard-sequencer/internal/app"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

type builder func(ctx context.Context) (*app.App, error)

// cli holds the flags shared by every subcommand.
type cli struct {
	build builder
	orgID int
}

func newRootCmd(build builder) *cobra.Command {
	c := &cli{build: build}
	root := &cobra.Command{
		Use:           "outreachctl",
		Short:         "Operate campaigns, enrollments and leads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&c.orgID, "org", 0, "organization id")

	root.AddCommand(
		c.runCycleCmd(),
		c.enrollCmd(),
		c.optOutCmd(),
		c.scoreCmd(),
		c.audienceCountCmd(),
	)
	return root
}

// withApp builds the app for one command and always closes it.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) (any, error)) error {
	a, err := c.build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (c *cli) requireOrg() error {
	if c.orgID <= 0 {
		return fmt.Errorf("--org is required")
	}
	return nil
}

func (c *cli) runCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-cycle",
		Short: "Run one runner cycle; without --org every organization is processed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) (any, error) {
				return a.Runner.RunCycle(cmd.Context(), c.orgID)
			})
		},
	}
}

func (c *cli) enrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <campaign-id>",
		Short: "Enroll a campaign's audience",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOrg(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) (any, error) {
				return a.Enrollment.Enroll(cmd.Context(), c.orgID, id)
			})
		},
	}
}

func (c *cli) optOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opt-out <lead-id>",
		Short: "Opt a lead out and cancel its active enrollments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOrg(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) (any, error) {
				return a.OptOut.OptOut(cmd.Context(), c.orgID, id)
			})
		},
	}
}

func (c *cli) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [lead-id]",
		Short: "Rescore one lead, or every lead of the organization",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOrg(); err != nil {
				return err
			}
			if len(args) == 0 {
				return c.withApp(cmd, func(a *app.App) (any, error) {
					return a.Scoring.ScoreAll(cmd.Context(), c.orgID)
				})
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) (any, error) {
				return a.Scoring.ScoreLead(cmd.Context(), c.orgID, id)
			})
		},
	}
}

func (c *cli) audienceCountCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "audience-count",
		Short: "Count leads matching a filter, opt-outs excluded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireOrg(); err != nil {
				return err
			}
			var f model.Filter
			if err := json.Unmarshal([]byte(filter), &f); err != nil {
				return fmt.Errorf("--filter: %w", err)
			}
			return c.withApp(cmd, func(a *app.App) (any, error) {
				n, err := a.Audiences.Count(cmd.Context(), c.orgID, f)
				if err != nil {
					return nil, err
				}
				return map[string]int{"count": n}, nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "{}", `filter as JSON, e.g. '{"status":"qualified","has_phone":true}'`)
	return cmd
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
