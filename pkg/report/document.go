package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/schema"
)

const (
	Title      = "Diabetes Risk Assessment Report"
	Disclaimer = "This is an AI-generated assessment. Please consult healthcare professionals for medical advice."

	// GeneratedLayout follows the en-US toLocaleString output.
	GeneratedLayout = "1/2/2006, 3:04:05 PM"
)

// ParameterRow is one line of the "Your Health Parameters" table.
type ParameterRow struct {
	Field string `json:"field" yaml:"field"`
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
	Unit  string `json:"unit" yaml:"unit"`
}

// Document describes a printable single-assessment report. It carries no
// layout; renderers decide how it looks.
type Document struct {
	Title           string         `json:"title" yaml:"title"`
	GeneratedAt     time.Time      `json:"generated_at" yaml:"generated_at"`
	Generated       string         `json:"generated" yaml:"generated"`
	RiskLevel       string         `json:"risk_level" yaml:"risk_level"`
	HighRisk        bool           `json:"high_risk" yaml:"high_risk"`
	Prediction      int            `json:"prediction" yaml:"prediction"`
	Confidence      string         `json:"confidence" yaml:"confidence"`
	Parameters      []ParameterRow `json:"parameters" yaml:"parameters"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
	Disclaimer      string         `json:"disclaimer" yaml:"disclaimer"`
}

// BuildDocument lays out r using the labels and units of s. Inputs the schema
// does not know are appended after the known ones, by name.
func BuildDocument(r assess.Result, s schema.Schema, loc *time.Location) Document {
	if loc == nil {
		loc = time.Local
	}
	doc := Document{
		Title:           Title,
		GeneratedAt:     r.Timestamp.Time,
		RiskLevel:       r.RiskLevel,
		HighRisk:        r.IsHighRisk(),
		Prediction:      r.Prediction,
		Confidence:      fmt.Sprintf("%.2f%%", r.Confidence),
		Recommendations: append([]string{}, r.Recommendation...),
		Disclaimer:      Disclaimer,
	}
	if !r.Timestamp.IsZero() {
		doc.Generated = r.Timestamp.In(loc).Format(GeneratedLayout)
	}

	for _, f := range s.Fields() {
		v, ok := r.InputData[f.Name]
		if !ok {
			continue
		}
		doc.Parameters = append(doc.Parameters, ParameterRow{Field: f.Name, Label: f.Label, Value: schema.FormatNumber(v), Unit: f.Unit})
	}
	var extra []string
	for k := range r.InputData {
		if _, ok := s.Lookup(k); !ok {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		doc.Parameters = append(doc.Parameters, ParameterRow{Field: k, Label: k, Value: schema.FormatNumber(r.InputData[k])})
	}
	return doc
}

// Markdown renders doc as a Markdown document.
func Markdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if doc.Generated != "" {
		fmt.Fprintf(&b, "_Generated on: %s_\n\n", doc.Generated)
	}

	b.WriteString("## Assessment Result\n\n")
	fmt.Fprintf(&b, "- **Risk Level:** %s\n", doc.RiskLevel)
	fmt.Fprintf(&b, "- **Confidence:** %s\n\n", doc.Confidence)

	b.WriteString("## Your Health Parameters\n\n")
	b.WriteString("| Parameter | Value | Unit |\n")
	b.WriteString("|---|---|---|\n")
	for _, p := range doc.Parameters {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(p.Label), p.Value, escapeCell(p.Unit))
	}
	b.WriteString("\n")

	if len(doc.Recommendations) > 0 {
		b.WriteString("## Health Recommendations\n\n")
		for i, rec := range doc.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n_%s_\n", doc.Disclaimer)
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
