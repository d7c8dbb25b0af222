package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/report"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// reportCmd implements: riskscope report [number]
var reportCmd = &cobra.Command{
	Use:   "report [number]",
	Short: "Render a report for a saved assessment (default: the newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos := 0
		if len(args) == 1 {
			var err error
			if pos, err = parsePosition(args[0]); err != nil {
				return err
			}
		}
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		if !reportFormats[format] {
			return fmt.Errorf("unknown format %q (use terminal, markdown, json or yaml)", format)
		}

		loc, err := displayLocation()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		result, ok := st.history.Get(pos)
		if !ok {
			if st.history.Len() == 0 {
				return fmt.Errorf("the history is empty, run 'riskscope predict' first")
			}
			return fmt.Errorf("no record #%d (history has %d)", pos+1, st.history.Len())
		}
		doc := report.BuildDocument(result, schema.Default(), loc)

		if !save {
			return renderDocument(os.Stdout, doc, format)
		}
		name := report.ReportName + "." + extension(format)
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("could not create report file: %w", err)
		}
		// Files always get plain Markdown rather than terminal escapes.
		if format == "terminal" {
			format = "markdown"
		}
		if err := renderDocument(f, doc, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		utils.Log.Infof("Report written to %s", name)
		return nil
	},
}

var reportFormats = map[string]bool{"terminal": true, "markdown": true, "md": true, "json": true, "yaml": true}

func renderDocument(w io.Writer, doc report.Document, format string) error {
	switch format {
	case "terminal":
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return err
		}
		out, err := renderer.Render(report.Markdown(doc))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "markdown", "md":
		_, err := io.WriteString(w, report.Markdown(doc))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (use terminal, markdown, json or yaml)", format)
	}
}

func extension(format string) string {
	switch format {
	case "json":
		return "json"
	case "yaml":
		return "yaml"
	default:
		return "md"
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("format", "f", "terminal", "Output format: terminal, markdown, json, yaml")
	reportCmd.Flags().Bool("save", false, "Write the report to diabetes-risk-assessment.<ext> instead of stdout")
}
