package whttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendHTTPRequestJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if got := r.Header.Get("X-Test"); got != "1" {
			t.Errorf("custom header missing")
		}
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Body:    []byte(`{"a":1}`),
		Headers: []WHTTPHeader{{Name: "X-Test", Value: "1"}},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() || res.BodyString != `{"a":1}` || res.ResponseLength != 7 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.HTTPTitle != "" {
		t.Fatalf("title should only be extracted from HTML, got %q", res.HTTPTitle)
	}
}

func TestSendHTTPRequestHTMLTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "<html><head><title>404 Not\n Found</title></head><body>nope</body></html>")
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() || res.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	if res.HTTPTitle != "404 Not Found" {
		t.Fatalf("unexpected title %q", res.HTTPTitle)
	}
}

func TestServerErrorPassesThroughWithoutRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"boom"}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientOptions{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, client)
	if err != nil {
		t.Fatalf("server errors must surface as responses: %v", err)
	}
	if res.StatusCode != 500 || res.BodyString != `{"error":"boom"}` {
		t.Fatalf("unexpected response %+v", res)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestRetriesWhenConfigured(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, err := NewClient(ClientOptions{RetryMax: 2})
	if err != nil {
		t.Fatal(err)
	}
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = time.Millisecond
	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, client)
	if err != nil {
		t.Fatal(err)
	}
	if res.BodyString != "ok" || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected success on second attempt, got %+v after %d hits", res, hits)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	if _, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: addr}, nil); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestInvalidProxy(t *testing.T) {
	if _, err := NewClient(ClientOptions{Proxy: "://bad"}); err == nil {
		t.Fatal("expected proxy parse error")
	}
}
