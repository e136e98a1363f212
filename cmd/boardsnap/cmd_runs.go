package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"boardsnap/internal/ledger"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	runsLimit int
	runsJSON  bool
)

// runsCmd inspects the run ledger
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past exports and imports",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its issues",
	Long: `Shows a run and every card or element that did not come through
cleanly. The id may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runsShow,
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs (0 = all)")
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "Print JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

func requireLedger() (*ledger.Ledger, error) {
	l := openLedger()
	if l == nil {
		return nil, errors.New("no run ledger: set ledger.path")
	}
	return l, nil
}

func runsList(cmd *cobra.Command, args []string) error {
	l, err := requireLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	runs, err := l.List(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []ledger.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tSTARTED\tELEMENTS\tISSUES\tBOARD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID), r.Kind, r.Status, r.Started.Local().Format(time.DateTime), r.Elements, r.IssueCount, r.Board)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runsShow(cmd *cobra.Command, args []string) error {
	l, err := requireLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	run, err := l.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), run)
	}

	md := run.Markdown()
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		if out, rerr := renderer.Render(md); rerr == nil {
			md = out
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), md)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
