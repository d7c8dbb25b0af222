package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/report"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 0, false},
		{"50", 49, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"first", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePosition(tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("parsePosition(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestEveryFieldHasAFlag(t *testing.T) {
	for _, f := range schema.Default().Fields() {
		name, ok := fieldFlags[f.Name]
		if !ok {
			t.Fatalf("no flag for %s", f.Name)
		}
		if predictCmd.Flags().Lookup(name) == nil {
			t.Fatalf("flag --%s not registered", name)
		}
	}
}

func sampleDocument() report.Document {
	r := assess.Result{
		Timestamp:      assess.Timestamp{Time: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		Prediction:     assess.LowRisk,
		RiskLevel:      "Low Risk",
		Confidence:     91.25,
		InputData:      assess.Measurements{schema.Glucose: 99},
		Recommendation: []string{"Stay active"},
	}
	return report.BuildDocument(r, schema.Default(), time.UTC)
}

func TestRenderDocumentFormats(t *testing.T) {
	doc := sampleDocument()

	var md bytes.Buffer
	if err := renderDocument(&md, doc, "markdown"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md.String(), "# "+report.Title) {
		t.Fatalf("unexpected markdown:\n%s", md.String())
	}

	var js bytes.Buffer
	if err := renderDocument(&js, doc, "json"); err != nil {
		t.Fatal(err)
	}
	var fromJSON report.Document
	if err := json.Unmarshal(js.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if fromJSON.Confidence != "91.25%" || len(fromJSON.Parameters) != 1 {
		t.Fatalf("unexpected json document: %+v", fromJSON)
	}

	var ym bytes.Buffer
	if err := renderDocument(&ym, doc, "yaml"); err != nil {
		t.Fatal(err)
	}
	var fromYAML map[string]interface{}
	if err := yaml.Unmarshal(ym.Bytes(), &fromYAML); err != nil {
		t.Fatal(err)
	}
	if fromYAML["risk_level"] != "Low Risk" || fromYAML["disclaimer"] != report.Disclaimer {
		t.Fatalf("unexpected yaml document: %v", fromYAML)
	}

	if err := renderDocument(&bytes.Buffer{}, doc, "pdf"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestExtension(t *testing.T) {
	for format, want := range map[string]string{"terminal": "md", "markdown": "md", "json": "json", "yaml": "yaml"} {
		if got := extension(format); got != want {
			t.Errorf("extension(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestDisplayLocation(t *testing.T) {
	defer viper.Set("display.timezone", "")

	viper.Set("display.timezone", "")
	if loc, err := displayLocation(); err != nil || loc != time.Local {
		t.Fatalf("empty timezone should be local, got %v %v", loc, err)
	}
	viper.Set("display.timezone", "UTC")
	if loc, err := displayLocation(); err != nil || loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %v %v", loc, err)
	}
	viper.Set("display.timezone", "Not/AZone")
	if _, err := displayLocation(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestImportanceBar(t *testing.T) {
	tests := []struct {
		pct  float64
		want int
	}{
		{40, 20},
		{3, 2},
		{0.4, 0},
		{0, 0},
		{-12, 0},
	}
	for _, tt := range tests {
		if got := utf8.RuneCountInString(importanceBar(tt.pct)); got != tt.want {
			t.Errorf("importanceBar(%v) has %d blocks, want %d", tt.pct, got, tt.want)
		}
	}
}

func TestRangeOrder(t *testing.T) {
	ranges := assess.Ranges{
		"Zinc":          {Normal: "1-2"},
		schema.Age:      {Normal: "21-81"},
		"Cholesterol":   {Normal: "0-200"},
		schema.Glucose:  {Normal: "70-100"},
		"Triglycerides": {Normal: "0-150"},
	}
	want := []string{schema.Glucose, schema.Age, "Cholesterol", "Triglycerides", "Zinc"}
	for i := 0; i < 5; i++ {
		if got := rangeOrder(ranges, schema.Default()); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("rangeOrder = %v, want %v", got, want)
		}
	}
}
