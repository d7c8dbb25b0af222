package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/query"
	"github.com/riskscope/riskscope/pkg/report"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse, export and manage saved assessments",
	Long: `Browse, export and manage saved assessments.

Records are numbered from 1 (the newest) in every listing. Numbers refer to the
stored order, so they stay valid whatever filter or sort is applied.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved assessments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := viewParams(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		entries := query.Entries(st.history.Records(), params)
		if len(entries) == 0 {
			if st.history.Len() == 0 {
				fmt.Println("No predictions yet. Run 'riskscope predict' to make your first assessment.")
			} else {
				fmt.Println("No records match the current filter.")
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tDATE\tTIME\tRISK\tCONFIDENCE\tGLUCOSE\tBMI\tAGE\t")
		for _, e := range entries {
			r := e.Result
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f%%\t%s\t%s\t%s\t\n",
				e.Position+1,
				query.FormatDate(r.Timestamp.Time, params.Location),
				query.FormatTime(r.Timestamp.Time, params.Location),
				r.RiskLevel,
				r.Confidence,
				inputValue(r, schema.Glucose),
				inputValue(r, schema.BMI),
				inputValue(r, schema.Age),
			)
		}
		w.Flush()
		fmt.Printf("\nShowing %d of %d records\n", len(entries), st.history.Len())
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the saved assessments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		stats := query.Compute(st.history.Records())
		if stats.Total == 0 {
			fmt.Println("No data in the history to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "TOTAL\tHIGH RISK\tLOW RISK\tAVG CONFIDENCE\t")
		fmt.Fprintf(w, "%d\t%d\t%d\t%.1f%%\t\n", stats.Total, stats.HighRisk, stats.LowRisk, stats.AvgConfidence)
		w.Flush()
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <number>",
	Short: "Delete one saved assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[0])
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, ok := st.history.Get(pos); !ok {
			fmt.Printf("No record #%d, nothing deleted.\n", pos+1)
			return nil
		}
		if err := st.history.Remove(cmd.Context(), pos); err != nil {
			return err
		}
		fmt.Printf("Deleted record #%d.\n", pos+1)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all saved assessments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to clear the history without --yes")
		}
		st, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer st.Close()

		n := st.history.Len()
		if err := st.history.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Cleared %d records.\n", n)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the (filtered) history to CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := viewParams(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		records := query.View(st.history.Records(), params)
		if len(records) == 0 {
			fmt.Println("No records to export.")
			return nil
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "-" {
			return report.WriteCSV(os.Stdout, records, params.Location)
		}
		if out == "" {
			out = report.FileName(report.HistoryPrefix, time.Now(), "csv")
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("could not create export file: %w", err)
		}
		if err := report.WriteCSV(f, records, params.Location); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		utils.Log.Infof("Exported %d records to %s", len(records), out)
		return nil
	},
}

func viewParams(cmd *cobra.Command) (query.Params, error) {
	loc, err := displayLocation()
	if err != nil {
		return query.Params{}, err
	}
	filterName, _ := cmd.Flags().GetString("filter")
	sortName, _ := cmd.Flags().GetString("sort")
	search, _ := cmd.Flags().GetString("search")

	filter, err := query.ParseFilter(filterName)
	if err != nil {
		return query.Params{}, err
	}
	order, err := query.ParseSort(sortName)
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{Filter: filter, Search: search, Sort: order, Location: loc}, nil
}

// parsePosition turns a 1-based record number into a store position.
func parsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("record number must be a positive integer, got %q", arg)
	}
	return n - 1, nil
}

func inputValue(r assess.Result, name string) string {
	v, ok := r.InputData[name]
	if !ok {
		return "-"
	}
	return schema.FormatNumber(v)
}

func addViewFlags(c *cobra.Command) {
	c.Flags().String("filter", "all", "Filter by risk: all, high-risk, low-risk")
	c.Flags().String("search", "", "Case-insensitive match on risk level or date (M/D/YYYY)")
	c.Flags().String("sort", "date-desc", "Sort: date-desc, date-asc, risk-high, risk-low")
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)

	addViewFlags(historyListCmd)
	addViewFlags(historyExportCmd)
	historyClearCmd.Flags().Bool("yes", false, "Confirm clearing the history")
	historyExportCmd.Flags().StringP("out", "o", "", "Output file, '-' for stdout (default diabetes-prediction-history-YYYY-MM-DD.csv)")
}
