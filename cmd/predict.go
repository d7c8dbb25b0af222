package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/history"
	"github.com/riskscope/riskscope/pkg/query"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/riskscope/riskscope/pkg/validate"
	"github.com/spf13/cobra"
)

// fieldFlags maps schema fields to their command line flag.
var fieldFlags = map[string]string{
	schema.Pregnancies:              "pregnancies",
	schema.Glucose:                  "glucose",
	schema.BloodPressure:            "blood-pressure",
	schema.SkinThickness:            "skin-thickness",
	schema.Insulin:                  "insulin",
	schema.BMI:                      "bmi",
	schema.DiabetesPedigreeFunction: "dpf",
	schema.Age:                      "age",
}

var errInvalidInput = errors.New("invalid input")

// predictCmd implements: riskscope predict
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Assess diabetes risk for a set of measurements",
	Long: `Validates the measurements, sends them to the prediction service and
saves the result to the local history (unless --no-save is given).`,
	Example: `  riskscope predict --pregnancies 2 --glucose 138 --blood-pressure 62 \
    --skin-thickness 35 --insulin 0 --bmi 33.6 --dpf 0.127 --age 47`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := schema.Default()

		in := validate.Input{}
		for _, f := range s.Fields() {
			v, _ := cmd.Flags().GetString(fieldFlags[f.Name])
			in[f.Name] = v
		}
		measurements, err := validate.Validate(in, s)
		if err != nil {
			var verr *validate.Error
			if errors.As(err, &verr) {
				printFieldErrors(s, verr)
				return errInvalidInput
			}
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Submit(cmd.Context(), measurements)
		if err != nil {
			var rerr *assess.RequestError
			if errors.As(err, &rerr) {
				utils.Log.Debugf("Prediction failed: %v", rerr)
				return errors.New(rerr.UserMessage())
			}
			return err
		}

		noSave, _ := cmd.Flags().GetBool("no-save")
		if !noSave {
			saveResult(cmd, result)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printResult(result)

		// Normal ranges only decorate the output; the assessment is already done.
		ranges, err := client.NormalRanges(cmd.Context())
		if err != nil {
			utils.Log.Warnf("Could not fetch normal ranges: %v", err)
			return nil
		}
		printComparison(query.Comparison(result, ranges, s))
		return nil
	},
}

func saveResult(cmd *cobra.Command, result assess.Result) {
	st, err := openStore(cmd.Context(), true)
	if err != nil {
		utils.Log.Warnf("Result not saved to history: %v", err)
		return
	}
	defer st.Close()

	if err := st.history.Insert(cmd.Context(), result); err != nil {
		var serr *history.StorageError
		if !errors.As(err, &serr) {
			utils.Log.Warnf("Result not saved to history: %v", err)
		}
		return
	}
	utils.Log.Debugf("Saved result, history now holds %d of %d records", st.history.Len(), st.history.Max())
}

func printFieldErrors(s schema.Schema, verr *validate.Error) {
	msgs := verr.Messages()
	for _, f := range s.Fields() {
		if msg, ok := msgs[f.Name]; ok {
			fmt.Fprintf(os.Stderr, "--%s (%s): %s\n", fieldFlags[f.Name], f.Label, msg)
		}
	}
}

func printResult(r assess.Result) {
	marker := "✅"
	if r.IsHighRisk() {
		marker = "⚠️ "
	}
	fmt.Printf("%s  %s (confidence %.2f%%)\n\n", marker, r.RiskLevel, r.Confidence)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Low risk probability\t%.2f%%\n", r.Probability.LowRisk)
	fmt.Fprintf(w, "High risk probability\t%.2f%%\n", r.Probability.HighRisk)
	fmt.Fprintf(w, "Assessed at\t%s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	w.Flush()

	if len(r.Recommendation) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range r.Recommendation {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

func printComparison(rows []query.ComparisonRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tYOUR VALUE\tNORMAL (MID)\t")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", row.Label, schema.FormatNumber(row.Value), schema.FormatNumber(row.NormalMid))
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(predictCmd)
	for _, f := range schema.Default().Fields() {
		usage := fmt.Sprintf("%s, %s to %s", f.Label, schema.FormatNumber(f.Min), schema.FormatNumber(f.Max))
		if f.Unit != "" {
			usage += " " + f.Unit
		}
		predictCmd.Flags().String(fieldFlags[f.Name], "", strings.TrimSpace(usage))
	}
	predictCmd.Flags().Bool("no-save", false, "Do not add the result to the history")
	predictCmd.Flags().Bool("json", false, "Print the raw result as JSON")
}
