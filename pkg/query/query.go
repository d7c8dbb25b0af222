package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskscope/riskscope/pkg/assess"
)

// Filter selects records by prediction.
type Filter int

const (
	All Filter = iota
	HighRiskOnly
	LowRiskOnly
)

// Sort orders the filtered records.
type Sort int

const (
	DateDesc Sort = iota
	DateAsc
	RiskHighFirst
	RiskLowFirst
)

// DateLayout and TimeLayout mirror the en-US toLocaleDateString/TimeString output.
const (
	DateLayout = "1/2/2006"
	TimeLayout = "3:04:05 PM"
)

var filterNames = map[string]Filter{
	"all":       All,
	"high-risk": HighRiskOnly,
	"low-risk":  LowRiskOnly,
}

var sortNames = map[string]Sort{
	"date-desc": DateDesc,
	"date-asc":  DateAsc,
	"risk-high": RiskHighFirst,
	"risk-low":  RiskLowFirst,
}

// ParseFilter accepts all, high-risk and low-risk. Empty means all.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return All, nil
	}
	f, ok := filterNames[s]
	if !ok {
		return All, fmt.Errorf("unknown filter %q (use all, high-risk or low-risk)", s)
	}
	return f, nil
}

// ParseSort accepts date-desc, date-asc, risk-high and risk-low. Empty means date-desc.
func ParseSort(s string) (Sort, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DateDesc, nil
	}
	o, ok := sortNames[s]
	if !ok {
		return DateDesc, fmt.Errorf("unknown sort %q (use date-desc, date-asc, risk-high or risk-low)", s)
	}
	return o, nil
}

func (f Filter) String() string {
	for name, v := range filterNames {
		if v == f {
			return name
		}
	}
	return "all"
}

func (s Sort) String() string {
	for name, v := range sortNames {
		if v == s {
			return name
		}
	}
	return "date-desc"
}

// Params are the view controls. A nil Location means local time.
type Params struct {
	Filter   Filter
	Search   string
	Sort     Sort
	Location *time.Location
}

// Entry is a record in a view together with its position in the store.
type Entry struct {
	Position int           `json:"position"`
	Result   assess.Result `json:"result"`
}

// FormatDate renders the calendar date the way search and export see it.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(DateLayout)
}

// FormatTime renders the wall-clock time used by exports.
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(TimeLayout)
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// Entries filters, searches and sorts records without modifying them.
func Entries(records []assess.Result, p Params) []Entry {
	needle := strings.ToLower(p.Search)

	out := make([]Entry, 0, len(records))
	for i, r := range records {
		if !p.Filter.keep(r) {
			continue
		}
		if needle != "" && !matches(r, needle, p.Location) {
			continue
		}
		out = append(out, Entry{Position: i, Result: r.Clone()})
	}

	slices.SortStableFunc(out, p.Sort.compare)
	return out
}

// View is Entries without the store positions.
func View(records []assess.Result, p Params) []assess.Result {
	entries := Entries(records, p)
	out := make([]assess.Result, len(entries))
	for i, e := range entries {
		out[i] = e.Result
	}
	return out
}

func (f Filter) keep(r assess.Result) bool {
	switch f {
	case HighRiskOnly:
		return r.Prediction == assess.HighRisk
	case LowRiskOnly:
		return r.Prediction == assess.LowRisk
	default:
		return true
	}
}

func matches(r assess.Result, needle string, loc *time.Location) bool {
	if strings.Contains(strings.ToLower(r.RiskLevel), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(FormatDate(r.Timestamp.Time, loc)), needle)
}

func (s Sort) compare(a, b Entry) int {
	switch s {
	case DateAsc:
		return a.Result.Timestamp.Compare(b.Result.Timestamp.Time)
	case RiskHighFirst:
		return cmp.Compare(b.Result.Probability.HighRisk, a.Result.Probability.HighRisk)
	case RiskLowFirst:
		return cmp.Compare(a.Result.Probability.HighRisk, b.Result.Probability.HighRisk)
	default:
		return b.Result.Timestamp.Compare(a.Result.Timestamp.Time)
	}
}

// Stats aggregates the whole history.
type Stats struct {
	Total         int     `json:"total"`
	HighRisk      int     `json:"high_risk"`
	LowRisk       int     `json:"low_risk"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Compute returns the aggregate statistics of records.
func Compute(records []assess.Result) Stats {
	s := Stats{Total: len(records)}
	var sum float64
	for _, r := range records {
		switch r.Prediction {
		case assess.HighRisk:
			s.HighRisk++
		case assess.LowRisk:
			s.LowRisk++
		}
		sum += r.Confidence
	}
	if s.Total > 0 {
		s.AvgConfidence = sum / float64(s.Total)
	}
	return s
}
