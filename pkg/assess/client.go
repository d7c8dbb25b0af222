package assess

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/riskscope/riskscope/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	defaultTimeout = 30 * time.Second

	predictPath    = "/api/predict"
	rangesPath     = "/api/normal-ranges"
	importancePath = "/api/feature-importance"
	healthPath     = "/api/health"
)

// Config controls how the Client reaches the prediction service.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// AuxRetries applies to the read-only endpoints only; Submit never retries.
	AuxRetries int
	Proxy      string
	Schema     schema.Schema
	Now        func() time.Time
}

// Client talks to the prediction service.
type Client struct {
	baseURL string
	predict *retryablehttp.Client
	aux     *retryablehttp.Client
	schema  schema.Schema
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	predict, err := whttp.NewClient(whttp.ClientOptions{Timeout: timeout, Proxy: cfg.Proxy})
	if err != nil {
		return nil, err
	}
	aux, err := whttp.NewClient(whttp.ClientOptions{Timeout: timeout, Proxy: cfg.Proxy, RetryMax: cfg.AuxRetries})
	if err != nil {
		return nil, err
	}

	s := cfg.Schema
	if s.Len() == 0 {
		s = schema.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{baseURL: baseURL, predict: predict, aux: aux, schema: s, now: now}, nil
}

// Submit sends validated measurements and returns the normalized result.
// It does not retry; callers decide whether to resubmit.
func (c *Client) Submit(ctx context.Context, in Measurements) (Result, error) {
	const op = "predict"

	payload := make(map[string]float64, c.schema.Len())
	for _, name := range c.schema.Names() {
		if v, ok := in[name]; ok {
			payload[name] = v
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	utils.Log.Debugf("[assess] submitting %d fields to %s", len(payload), c.baseURL+predictPath)
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    c.baseURL + predictPath,
		Body:   body,
	}, c.predict)
	if err != nil {
		return Result{}, &RequestError{Kind: Unreachable, Op: op, Message: msgUnreachable, Err: err}
	}
	if !res.OK() {
		return Result{}, rejected(op, res)
	}

	var out Result
	if err := json.Unmarshal([]byte(res.BodyString), &out); err != nil {
		return Result{}, &RequestError{Kind: Malformed, Op: op, Status: res.StatusCode, Message: "cannot decode result", Err: err}
	}
	if err := c.normalize(&out, in); err != nil {
		return Result{}, &RequestError{Kind: Malformed, Op: op, Status: res.StatusCode, Message: err.Error()}
	}
	return out, nil
}

func (c *Client) normalize(r *Result, submitted Measurements) error {
	if r.Prediction != LowRisk && r.Prediction != HighRisk {
		return fmt.Errorf("prediction must be 0 or 1, got %d", r.Prediction)
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("confidence %.2f outside [0,100]", r.Confidence)
	}
	if strings.TrimSpace(r.RiskLevel) == "" {
		r.RiskLevel = RiskLabel(r.Prediction)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = Timestamp{c.now()}
	}
	if r.InputData == nil {
		r.InputData = submitted.Clone()
		return nil
	}
	if !r.InputData.Equal(submitted) {
		// The echoed copy is what the model evaluated; keep it for traceability.
		utils.Log.Warnf("[assess] server echoed input_data that differs from the submitted values")
	}
	return nil
}

// RiskLabel is the label used when the service omits risk_level.
func RiskLabel(prediction int) string {
	if prediction == HighRisk {
		return "High Risk"
	}
	return "Low Risk"
}

func rejected(op string, res *whttp.WHTTPRes) *RequestError {
	msg := ""
	if gjson.Valid(res.BodyString) {
		msg = gjson.Get(res.BodyString, "error").String()
	}
	if msg == "" {
		msg = res.HTTPTitle
	}
	if msg == "" {
		msg = msgGeneric
	}
	return &RequestError{Kind: ServerRejected, Op: op, Status: res.StatusCode, Message: msg}
}

func (c *Client) getJSON(ctx context.Context, op, path string) (string, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: c.baseURL + path}, c.aux)
	if err != nil {
		return "", &RequestError{Kind: Unreachable, Op: op, Message: msgUnreachable, Err: err}
	}
	if !res.OK() {
		return "", rejected(op, res)
	}
	if !gjson.Valid(res.BodyString) {
		return "", &RequestError{Kind: Malformed, Op: op, Status: res.StatusCode, Message: "response is not JSON"}
	}
	return res.BodyString, nil
}

// NormalRanges fetches the normal physiological range of every field.
func (c *Client) NormalRanges(ctx context.Context) (Ranges, error) {
	body, err := c.getJSON(ctx, "normal-ranges", rangesPath)
	if err != nil {
		return nil, err
	}
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return nil, &RequestError{Kind: Malformed, Op: "normal-ranges", Message: "expected an object"}
	}
	out := Ranges{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		out[key.String()] = Range{
			Min:         value.Get("min").Float(),
			Max:         value.Get("max").Float(),
			Normal:      value.Get("normal").String(),
			Unit:        value.Get("unit").String(),
			Description: value.Get("description").String(),
		}
		return true
	})
	return out, nil
}

// FeatureImportance fetches the model's feature weights, highest first.
func (c *Client) FeatureImportance(ctx context.Context) ([]Feature, error) {
	body, err := c.getJSON(ctx, "feature-importance", importancePath)
	if err != nil {
		return nil, err
	}
	features := gjson.Get(body, "features")
	if !features.IsArray() {
		return nil, &RequestError{Kind: Malformed, Op: "feature-importance", Message: "missing features list"}
	}
	var out []Feature
	for _, f := range features.Array() {
		out = append(out, Feature{
			Name:       f.Get("name").String(),
			Importance: f.Get("importance").Float(),
			Percentage: f.Get("percentage").Float(),
		})
	}
	slices.SortStableFunc(out, func(a, b Feature) int {
		return cmp.Compare(b.Percentage, a.Percentage)
	})
	return out, nil
}

// Health reports whether the service is up and has a model loaded.
func (c *Client) Health(ctx context.Context) (Health, error) {
	body, err := c.getJSON(ctx, "health", healthPath)
	if err != nil {
		return Health{}, err
	}
	h := Health{
		Status:      gjson.Get(body, "status").String(),
		ModelLoaded: gjson.Get(body, "model_loaded").Bool(),
	}
	if ts := gjson.Get(body, "timestamp").String(); ts != "" {
		if parsed, err := ParseTimestamp(ts); err == nil {
			h.Timestamp = parsed
		}
	}
	return h, nil
}
