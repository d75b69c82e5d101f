package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contract-cli/internal/cost"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/monitoring"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect extraction run history",
	Long:  "Commands for listing, viewing, and summarizing extraction runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := model.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		}
		if cmd.Flags().Changed("review") {
			review, _ := cmd.Flags().GetBool("review")
			filter.RequiresReview = &review
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs fields --

var runsFieldsCmd = &cobra.Command{
	Use:   "fields <run-id>",
	Short: "List the fields extracted by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fields, err := st.ListFields(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs fields")
		}

		if len(fields) == 0 {
			fmt.Fprintln(os.Stderr, "No fields recorded.")
			return nil
		}

		formatFieldsList(os.Stdout, fields)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	Long:  "Summarizes runs in the lookback window. With --alert, breached monitoring thresholds are sent to the monitoring webhook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours, _ := cmd.Flags().GetInt("hours")
		collector := monitoring.NewCollector(st, cost.NewCalculator(pricingRates(cfg.Pricing)), cfg.Anthropic.Model)
		snap, err := collector.Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatSnapshot(os.Stdout, snap)

		if alert, _ := cmd.Flags().GetBool("alert"); alert {
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			alerts := alerter.Evaluate(snap)
			for _, a := range alerts {
				fmt.Fprintf(os.Stderr, "ALERT [%s] %s\n", a.Severity, a.Message)
			}
			alerter.SendAlerts(ctx, alerts)
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, extracting, complete, failed)")
	runsListCmd.Flags().Bool("review", false, "filter by whether the run requires review")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsStatsCmd.Flags().Int("hours", 24, "lookback window in hours")
	runsStatsCmd.Flags().Bool("alert", false, "evaluate monitoring thresholds and send alerts")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsFieldsCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE\tSTATUS\tCONFIDENCE\tREVIEW\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t----------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		file := r.FileName
		if len(file) > 30 {
			file = file[:27] + "..."
		}

		conf, review := "-", "-"
		if r.Status == model.RunStatusComplete {
			conf = fmt.Sprintf("%.2f", r.OverallConfidence)
			review = "no"
			if r.RequiresReview {
				review = "yes"
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			file,
			r.Status,
			conf,
			review,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatFieldsList writes a tabular list of extracted fields to w.
func formatFieldsList(out io.Writer, fields []model.ExtractedField) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE\tCONFIDENCE\tPAGE")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----------\t----")

	for _, f := range fields {
		page := "-"
		if f.SourcePage != nil {
			page = fmt.Sprintf("%d", *f.SourcePage)
		}
		value := fmt.Sprintf("%v", f.Value)
		if len(value) > 40 {
			value = value[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", f.Name, value, f.Confidence, page)
	}
	_ = w.Flush()
}

// formatSnapshot writes aggregate run metrics to w.
func formatSnapshot(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "  Needs review:\t%d (%.1f%%)\n", s.ReviewCount, s.ReviewRate*100)
	_, _ = fmt.Fprintf(w, "Failed:\t%d (%.1f%%)\n", s.RunsFailed, s.FailRate*100)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.RunsInFlight)
	if s.RunsComplete > 0 {
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.2f\n", s.AvgConfidence)
	}
	_, _ = fmt.Fprintf(w, "Tokens:\t%d\n", s.TotalTokens)
	_, _ = fmt.Fprintf(w, "Est. cost:\t$%.2f\n", s.CostUSD)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
