package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/client"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/spf13/cobra"
)

// ── projects ─────────────────────────────────────────────────────────────────

func newProjectsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "List and create projects",
	}
	cmd.AddCommand(newProjectsListCmd(g), newProjectsCreateCmd(g))
	return cmd
}

func newProjectsListCmd(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with their latest risk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			cards, err := c.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), cards)
			}
			printProjects(cmd.OutOrStdout(), cards)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func printProjects(out io.Writer, cards []client.ProjectCard) {
	if len(cards) == 0 {
		fmt.Fprintln(out, "no projects")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tLEVEL\tSCORE\tLATEST")
	for _, card := range cards {
		level, score, latest := "-", "-", "-"
		if card.Risk != nil {
			level, score = string(card.Risk.Level), strconv.Itoa(card.Risk.Score)
		}
		if card.Latest != nil {
			latest = card.Latest.SnapshotDate
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			card.Project.ID, card.Project.Name, card.Project.Owner, level, score, latest)
	}
	w.Flush()
}

func newProjectsCreateCmd(g *globalOptions) *cobra.Command {
	var req client.CreateProjectRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Example: `  riskctl projects create --name "Billing Migration" --owner Dana \
      --start 2024-01-01 --end 2024-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			p, err := c.CreateProject(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created project %d: %s\n", p.ID, p.Name)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "project name")
	f.StringVar(&req.Owner, "owner", "", "project owner")
	f.StringVar(&req.StartDate, "start", "", "start date (YYYY-MM-DD)")
	f.StringVar(&req.EndDate, "end", "", "end date (YYYY-MM-DD)")
	for _, name := range []string{"name", "owner", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// ── metrics ──────────────────────────────────────────────────────────────────

func newMetricsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Record metrics snapshots",
	}
	cmd.AddCommand(newMetricsAddCmd(g))
	return cmd
}

func newMetricsAddCmd(g *globalOptions) *cobra.Command {
	req := client.AddMetricsRequest{}
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Record a snapshot and print its risk",
		Example: `  riskctl metrics add 3 --planned 50 --completed 20 --blockers 3 --bugs 10 \
      --scope 25 --cycle 6 --comments "sprint 4"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			if req.SnapshotDate == "" {
				req.SnapshotDate = time.Now().Format(model.DateLayout)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.AddMetrics(cmd.Context(), id, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recorded snapshot %d for %s\n", res.Snapshot.ID, res.Snapshot.SnapshotDate)
			if res.Escalated && res.PreviousRisk != nil {
				fmt.Fprintf(out, "risk escalated from %s to %s\n", res.PreviousRisk.Level, res.Risk.Level)
			}
			printResult(out, res.Risk, false)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.SnapshotDate, "date", "", "snapshot date (YYYY-MM-DD, default today)")
	f.IntVar(&req.PlannedTasks, "planned", 0, "planned tasks")
	f.IntVar(&req.CompletedTasks, "completed", 0, "completed tasks")
	f.IntVar(&req.InProgressTasks, "in-progress", 0, "in-progress tasks")
	f.IntVar(&req.BlockersCount, "blockers", 0, "open blockers")
	f.IntVar(&req.BugsOpen, "bugs", 0, "open bugs")
	f.Float64Var(&req.ScopeChangePercent, "scope", 0, "scope change percent (0-100)")
	f.Float64Var(&req.AvgCycleTimeDays, "cycle", 0, "average cycle time in days")
	f.StringVar(&req.Comments, "comments", "", "free-form notes")
	return cmd
}

// ── report ───────────────────────────────────────────────────────────────────

func newReportCmd(g *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report <project-id>",
		Short: "Print a project's risk history",
		Long: `Report prints every snapshot of a project with its risk.

--format csv streams the same CSV the web UI offers for download.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			switch format {
			case "csv":
				return c.DownloadReport(cmd.Context(), id, cmd.OutOrStdout())
			case "table", "json":
				tl, err := c.Timeline(cmd.Context(), id)
				if err != nil {
					return err
				}
				if format == "json" {
					return writeJSON(cmd.OutOrStdout(), tl)
				}
				printTimeline(cmd.OutOrStdout(), tl)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table, csv or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, csv or json")
	return cmd
}

func printTimeline(out io.Writer, tl *client.Timeline) {
	fmt.Fprintf(out, "%s (owner %s, %s to %s)\n\n",
		tl.Project.Name, tl.Project.Owner, tl.Project.StartDate, tl.Project.EndDate)
	if len(tl.Points) == 0 {
		fmt.Fprintln(out, "no snapshots recorded")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPLANNED\tCOMPLETED\tCOMPLETION\tSCORE\tLEVEL")
	for _, p := range tl.Points {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%d\t%s\n",
			p.Snapshot.SnapshotDate, p.Snapshot.PlannedTasks, p.Snapshot.CompletedTasks,
			p.Risk.KPIs.CompletionRate*100, p.Risk.Score, p.Risk.Level)
	}
	w.Flush()

	if tl.Latest != nil {
		fmt.Fprintln(out, "\nLatest reasons:")
		for _, r := range tl.Latest.Risk.Reasons {
			fmt.Fprintf(out, "  - %s\n", r)
		}
		if tl.Latest.Risk.Level.Above(risk.LevelLow) {
			fmt.Fprintln(out, "\nThis project needs attention.")
		}
	}
}

func parseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project ID %q", s)
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
