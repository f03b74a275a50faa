package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jmerrifield20/DeliveryRiskTracker/internal/tracker/model"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/client"
	"github.com/jmerrifield20/DeliveryRiskTracker/pkg/risk"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// scoreFile is the on-disk input for "riskctl score -f". JSON files parse
// too since JSON is valid YAML.
type scoreFile struct {
	Current  *risk.Snapshot `yaml:"current"`
	Previous *risk.Snapshot `yaml:"previous"`
}

type scoreOptions struct {
	file     string
	format   string
	explain  bool
	remote   bool
	current  risk.Snapshot
	previous risk.Snapshot
	hasPrev  bool
}

func newScoreCmd(g *globalOptions) *cobra.Command {
	o := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a snapshot, optionally against the previous one",
		Long: `Score computes the delivery risk of a snapshot without storing it.

Values come from flags or from a YAML/JSON file with "current" and optional
"previous" sections using the API field names:

  current:
    planned_tasks: 50
    completed_tasks: 20
    blockers_count: 3
  previous:
    planned_tasks: 48
    completed_tasks: 30

Scoring runs locally unless --remote is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.hasPrev = cmd.Flags().Changed("prev-planned") || cmd.Flags().Changed("prev-completed")
			return o.run(cmd.Context(), g, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", `read snapshots from a YAML/JSON file ("-" for stdin)`)
	f.StringVar(&o.format, "format", "text", "output format: text or json")
	f.BoolVar(&o.explain, "explain", false, "show the points each signal contributed")
	f.BoolVar(&o.remote, "remote", false, "score on the server instead of locally")
	f.IntVar(&o.current.PlannedTasks, "planned", 0, "planned tasks")
	f.IntVar(&o.current.CompletedTasks, "completed", 0, "completed tasks")
	f.IntVar(&o.current.InProgressTasks, "in-progress", 0, "in-progress tasks (recorded, not scored)")
	f.IntVar(&o.current.BlockersCount, "blockers", 0, "open blockers")
	f.IntVar(&o.current.BugsOpen, "bugs", 0, "open bugs")
	f.Float64Var(&o.current.ScopeChangePercent, "scope", 0, "scope change percent (0-100)")
	f.Float64Var(&o.current.AvgCycleTimeDays, "cycle", 0, "average cycle time in days")
	f.IntVar(&o.previous.PlannedTasks, "prev-planned", 0, "previous snapshot's planned tasks")
	f.IntVar(&o.previous.CompletedTasks, "prev-completed", 0, "previous snapshot's completed tasks")
	return cmd
}

func (o *scoreOptions) run(ctx context.Context, g *globalOptions, stdin io.Reader, out io.Writer) error {
	cur, prev := o.current, (*risk.Snapshot)(nil)
	if o.hasPrev {
		p := o.previous
		prev = &p
	}

	if o.file != "" {
		in, err := readScoreFile(o.file, stdin)
		if err != nil {
			return err
		}
		cur, prev = *in.Current, in.Previous
	}

	if err := validateScoreInput(cur, prev); err != nil {
		return err
	}

	var result risk.Result
	if o.remote {
		c, err := g.client()
		if err != nil {
			return err
		}
		res, err := c.Score(ctx, client.ScoreRequest{Current: cur, Previous: prev})
		if err != nil {
			return err
		}
		result = *res
	} else {
		result = risk.NewEngine().Evaluate(cur, prev)
	}

	switch o.format {
	case "json":
		return writeJSON(out, result)
	case "text":
		printResult(out, result, o.explain)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", o.format)
	}
}

func readScoreFile(path string, stdin io.Reader) (*scoreFile, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var in scoreFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty input", path)
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if in.Current == nil {
		return nil, fmt.Errorf("%s: missing \"current\" section", path)
	}
	return &in, nil
}

// validateScoreInput applies the same bounds the API enforces.
func validateScoreInput(cur risk.Snapshot, prev *risk.Snapshot) error {
	req := &model.ScoreRequest{Current: inputFor(cur)}
	if prev != nil {
		req.Previous = inputFor(*prev)
	}
	return model.Validate(req)
}

func inputFor(s risk.Snapshot) *model.SnapshotInput {
	return &model.SnapshotInput{
		PlannedTasks:       &s.PlannedTasks,
		CompletedTasks:     &s.CompletedTasks,
		InProgressTasks:    &s.InProgressTasks,
		BlockersCount:      &s.BlockersCount,
		BugsOpen:           &s.BugsOpen,
		ScopeChangePercent: &s.ScopeChangePercent,
		AvgCycleTimeDays:   &s.AvgCycleTimeDays,
	}
}

func printResult(out io.Writer, r risk.Result, explain bool) {
	fmt.Fprintf(out, "Risk score: %d (%s)\n\nReasons:\n", r.Score, r.Level)
	for _, reason := range r.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}

	fmt.Fprintln(out, "\nKPIs:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  completion rate\t%.1f%%\n", r.KPIs.CompletionRate*100)
	fmt.Fprintf(w, "  remaining tasks\t%d\n", r.KPIs.RemainingTasks)
	fmt.Fprintf(w, "  blockers\t%d\n", r.KPIs.Blockers)
	fmt.Fprintf(w, "  open bugs\t%d\n", r.KPIs.BugsOpen)
	fmt.Fprintf(w, "  scope change\t%.2f%%\n", r.KPIs.ScopeChangePercent)
	fmt.Fprintf(w, "  avg cycle time\t%.2f days\n", r.KPIs.AvgCycleTimeDays)
	w.Flush()

	if !explain {
		return
	}
	fmt.Fprintln(out, "\nContributions:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  SIGNAL\tPOINTS")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 10)+"\t"+strings.Repeat("-", 6))
	for _, c := range r.Contributions {
		fmt.Fprintf(w, "  %s\t%.2f\n", c.Signal, c.Points)
	}
	w.Flush()
}
