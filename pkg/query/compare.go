package query

import (
	"slices"
	"strings"

	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/schema"
)

// radarAxes is how many fields the radar view shows.
const radarAxes = 6

// ComparisonRow puts a submitted value next to the middle of its normal range.
type ComparisonRow struct {
	Field     string  `json:"field"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	NormalMid float64 `json:"normal_mid"`
}

// RadarPoint is a value expressed as a percentage of its range maximum.
type RadarPoint struct {
	Field    string  `json:"field"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"full_mark"`
}

// orderedKeys lists the result's inputs in schema order, then any extras sorted.
func orderedKeys(in assess.Measurements, s schema.Schema) []string {
	keys := make([]string, 0, len(in))
	for _, name := range s.Names() {
		if _, ok := in[name]; ok {
			keys = append(keys, name)
		}
	}
	var extra []string
	for k := range in {
		if _, ok := s.Lookup(k); !ok {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

func label(s schema.Schema, name string) string {
	if f, ok := s.Lookup(name); ok {
		return f.Label
	}
	return name
}

// Comparison returns one row per input that has a known range. When the
// normal string cannot be parsed the value itself stands in for the midpoint.
func Comparison(r assess.Result, ranges assess.Ranges, s schema.Schema) []ComparisonRow {
	var rows []ComparisonRow
	for _, key := range orderedKeys(r.InputData, s) {
		rng, ok := ranges[key]
		if !ok {
			continue
		}
		value := r.InputData[key]
		mid := value
		if lo, hi, ok := rng.NormalBounds(); ok {
			mid = (lo + hi) / 2
		}
		rows = append(rows, ComparisonRow{Field: key, Label: label(s, key), Value: value, NormalMid: mid})
	}
	return rows
}

// Radar scales the first six inputs to a percentage of their range maximum,
// using 100 when no positive maximum is known.
func Radar(r assess.Result, ranges assess.Ranges, s schema.Schema) []RadarPoint {
	keys := orderedKeys(r.InputData, s)
	if len(keys) > radarAxes {
		keys = keys[:radarAxes]
	}
	points := make([]RadarPoint, 0, len(keys))
	for _, key := range keys {
		scale := 100.0
		if rng, ok := ranges[key]; ok && rng.Max > 0 {
			scale = rng.Max
		}
		metric, _, _ := strings.Cut(label(s, key), " ")
		points = append(points, RadarPoint{
			Field:    key,
			Metric:   metric,
			Value:    r.InputData[key] / scale * 100,
			FullMark: 100,
		})
	}
	return points
}
