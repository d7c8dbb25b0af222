package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/riskscope/riskscope/internal/utils"
	"golang.org/x/net/html"
)

const userAgent = "riskscope/1.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode     int
	ContentType    string
	ResponseLength int
	HTTPTitle      string
	BodyString     string
}

// OK reports a 2xx status.
func (r *WHTTPRes) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout  time.Duration
	RetryMax int
	Proxy    string
}

// NewClient builds a retrying client whose failures are passed through
// with the last response intact, so callers can read server error bodies.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = utils.RetryLogger{Logger: utils.Log}
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		if t, ok := c.HTTPClient.Transport.(*http.Transport); ok {
			t.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return c, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (wRes *WHTTPRes, err error) {
	if client == nil {
		if client, err = NewClient(ClientOptions{}); err != nil {
			return nil, err
		}
	}

	var body interface{}
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if wReq.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("%s %s: empty response", method, wReq.URL)
		}
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes = &WHTTPRes{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		BodyString:  string(bodyBytes),
	}

	if strings.Contains(wRes.ContentType, "html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		utils.Log.Debugf("failed to parse HTML body: %v", err)
		return "", false
	}

	return traverse(doc)
}
