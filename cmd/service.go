package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/spf13/cobra"
)

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Show the normal range of every measurement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ranges, err := client.NormalRanges(cmd.Context())
		if err != nil {
			return friendly(err)
		}

		s := schema.Default()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PARAMETER\tNORMAL\tMIN\tMAX\tUNIT\t")
		for _, name := range rangeOrder(ranges, s) {
			label := name
			if f, ok := s.Lookup(name); ok {
				label = f.Label
			}
			printRange(w, label, ranges[name])
		}
		return w.Flush()
	},
}

// rangeOrder lists schema fields first, then anything else the service sent
// in name order.
func rangeOrder(ranges assess.Ranges, s schema.Schema) []string {
	var names, extra []string
	for _, f := range s.Fields() {
		if _, ok := ranges[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	for name := range ranges {
		if _, ok := s.Lookup(name); !ok {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

func printRange(w *tabwriter.Writer, label string, r assess.Range) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", label, r.Normal, schema.FormatNumber(r.Min), schema.FormatNumber(r.Max), r.Unit)
}

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Show how much each measurement weighs in the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		features, err := client.FeatureImportance(cmd.Context())
		if err != nil {
			return friendly(err)
		}
		if len(features) == 0 {
			fmt.Println("The service reported no feature importance.")
			return nil
		}

		s := schema.Default()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, f := range features {
			label := f.Name
			if field, ok := s.Lookup(f.Name); ok {
				label = field.Label
			}
			fmt.Fprintf(w, "%s\t%5.1f%%\t%s\n", label, f.Percentage, importanceBar(f.Percentage))
		}
		return w.Flush()
	},
}

// importanceBar draws one block per two percent, none for negative weights.
func importanceBar(pct float64) string {
	n := int(pct/2 + 0.5)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the prediction service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		h, err := client.Health(cmd.Context())
		if err != nil {
			return friendly(err)
		}
		fmt.Printf("status: %s\nmodel loaded: %t\n", h.Status, h.ModelLoaded)
		if !h.Timestamp.IsZero() {
			fmt.Printf("server time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
		}
		if !h.ModelLoaded {
			return errors.New("the service is up but has no model loaded")
		}
		return nil
	},
}

// friendly replaces connection failures with the message shown to users.
func friendly(err error) error {
	var rerr *assess.RequestError
	if errors.As(err, &rerr) && rerr.Kind == assess.Unreachable {
		return errors.New(rerr.UserMessage())
	}
	return err
}

func init() {
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(importanceCmd)
	rootCmd.AddCommand(healthCmd)
}
