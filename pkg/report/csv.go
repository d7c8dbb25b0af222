package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/query"
	"github.com/riskscope/riskscope/pkg/schema"
)

// CSVHeader is the fixed column order of history exports.
var CSVHeader = []string{"Date", "Time", "Risk Level", "Confidence", "Glucose", "BMI", "Age", "Blood Pressure"}

// csvFields are the input columns following Confidence.
var csvFields = []string{schema.Glucose, schema.BMI, schema.Age, schema.BloodPressure}

// WriteCSV writes records in the order given. Dates and times are rendered in loc.
func WriteCSV(w io.Writer, records []assess.Result, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			query.FormatDate(r.Timestamp.Time, loc),
			query.FormatTime(r.Timestamp.Time, loc),
			r.RiskLevel,
			fmt.Sprintf("%.2f%%", r.Confidence),
		}
		for _, name := range csvFields {
			v, ok := r.InputData[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, schema.FormatNumber(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the export as a string.
func CSV(records []assess.Result, loc *time.Location) string {
	var buf bytes.Buffer
	// bytes.Buffer never fails a write.
	_ = WriteCSV(&buf, records, loc)
	return buf.String()
}

// FileName builds default export names such as
// diabetes-prediction-history-2024-03-15.csv.
func FileName(prefix string, now time.Time, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), ext)
}

// Default name prefixes.
const (
	HistoryPrefix = "diabetes-prediction-history"
	ReportName    = "diabetes-risk-assessment"
)
