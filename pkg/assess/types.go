package assess

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Prediction labels returned by the model.
const (
	LowRisk  = 0
	HighRisk = 1
)

// Measurements holds one validated value per schema field.
type Measurements map[string]float64

// UnmarshalJSON accepts numbers and numeric strings, since the service echoes
// whatever representation it was sent. A null object leaves m nil; a null
// value is an error rather than a zero.
func (m *Measurements) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Measurements, len(raw))
	for k, v := range raw {
		if isNull(v) {
			return fmt.Errorf("input_data.%s: value is null", k)
		}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			out[k] = n
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("input_data.%s: expected number, got %s", k, string(v))
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("input_data.%s: %w", k, err)
		}
		out[k] = n
	}
	*m = out
	return nil
}

func isNull(data []byte) bool {
	return strings.TrimSpace(string(data)) == "null"
}

// Equal reports whether both sets carry the same keys with the same values.
func (m Measurements) Equal(o Measurements) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || math.Abs(v-ov) > 1e-9 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m Measurements) Clone() Measurements {
	if m == nil {
		return nil
	}
	out := make(Measurements, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the field names sorted alphabetically.
func (m Measurements) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Probability is the class split in percent.
type Probability struct {
	LowRisk  float64 `json:"low_risk"`
	HighRisk float64 `json:"high_risk"`
}

// Result is a completed assessment as returned by the prediction service.
type Result struct {
	Timestamp      Timestamp    `json:"timestamp"`
	Prediction     int          `json:"prediction"`
	RiskLevel      string       `json:"risk_level"`
	Confidence     float64      `json:"confidence"`
	Probability    Probability  `json:"probability"`
	InputData      Measurements `json:"input_data"`
	Recommendation []string     `json:"recommendation"`
}

func (r Result) IsHighRisk() bool { return r.Prediction == HighRisk }

// Clone returns a deep copy so callers cannot alias stored snapshots.
func (r Result) Clone() Result {
	out := r
	out.InputData = r.InputData.Clone()
	if r.Recommendation != nil {
		out.Recommendation = append([]string(nil), r.Recommendation...)
	}
	return out
}

// Timestamp is a time.Time that also understands the naive ISO-8601 format
// produced by Python's datetime.isoformat().
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses RFC 3339 first, then naive layouts in local time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Range is the normal physiological range of one field.
type Range struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Normal      string  `json:"normal"`
	Unit        string  `json:"unit,omitempty"`
	Description string  `json:"description,omitempty"`
}

// NormalBounds parses the "lo-hi" normal string.
func (r Range) NormalBounds() (lo, hi float64, ok bool) {
	parts := strings.SplitN(r.Normal, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// Ranges maps field name to its normal range.
type Ranges map[string]Range

// Feature is one entry of the model's feature-importance list.
type Feature struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	Percentage float64 `json:"percentage"`
}

// Health is the service liveness report.
type Health struct {
	Status      string    `json:"status"`
	ModelLoaded bool      `json:"model_loaded"`
	Timestamp   Timestamp `json:"timestamp"`
}
