package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/ugp/internal/model"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent", MaxBodyBytes: 1 << 20}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/sample.json":
			_, _ = fmt.Fprint(w, sampleJSON)
		case "/api/dataset":
			w.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
			_, _ = fmt.Fprint(w, sampleYAML)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(testHTTPConfig())

	ds, err := f.Fetch(context.Background(), server.URL+"/sample.json")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ds.Len() != 2 || ds.ReferenceFrame != "mol%" {
		t.Errorf("unexpected dataset %+v", ds)
	}

	ds, err = f.Fetch(context.Background(), server.URL+"/api/dataset")
	if err != nil {
		t.Fatalf("Fetch by content type failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("expected 2 analyses, got %d", ds.Len())
	}
}

func TestFetch_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big.json":
			_, _ = fmt.Fprint(w, `{"analyses": [], "reference": "`+strings.Repeat("x", 200)+`"}`)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, "<html></html>")
		case "/broken.json":
			_, _ = fmt.Fprint(w, `{"analyses": [{"mineral": "gt"}]}`)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxBodyBytes = 100
	f := NewFetcher(cfg)

	tests := []struct {
		path    string
		wantMsg string
	}{
		{"/down.json", "unexpected status 503"},
		{"/big.json", "exceeds 100 bytes"},
		{"/page", "cannot tell dataset format"},
		{"/broken.json", `missing "metadata"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), server.URL+tt.path)
			if !errors.Is(err, model.ErrIngestion) {
				t.Fatalf("expected ErrIngestion, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestFetch_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewFetcher(testHTTPConfig()).Fetch(ctx, server.URL+"/slow.json")
	if !errors.Is(err, model.ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		rawURL, contentType string
		want                Format
		ok                  bool
	}{
		{"http://h/a.YML", "", FormatYAML, true},
		{"http://h/a.json", "text/plain", FormatJSON, true},
		{"http://h/a", "application/vnd.api+json", FormatJSON, true},
		{"http://h/a", "text/yaml", FormatYAML, true},
		{"http://h/a", "text/csv", "", false},
		{"http://h/a", "", "", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.rawURL)
		got, ok := formatOf(u, tt.contentType)
		if got != tt.want || ok != tt.ok {
			t.Errorf("formatOf(%s, %q) = %q, %v; want %q, %v", tt.rawURL, tt.contentType, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProxyFunc(t *testing.T) {
	fn := proxyFunc("http://proxy:8080", "http://secure-proxy:8443")

	req, _ := http.NewRequest(http.MethodGet, "https://example.org/a.json", nil)
	u, err := fn(req)
	if err != nil || u.Host != "secure-proxy:8443" {
		t.Errorf("expected https proxy, got %v (%v)", u, err)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.org/a.json", nil)
	u, err = fn(req)
	if err != nil || u.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v (%v)", u, err)
	}
}

func TestLoader_Local(t *testing.T) {
	if !IsRemote("https://example.org/a.json") || IsRemote("/data/a.json") {
		t.Error("IsRemote misclassified a source")
	}

	ds, err := NewLoader(testHTTPConfig()).Load(context.Background(), writeFile(t, "a.json", sampleJSON))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("expected 2 analyses, got %d", ds.Len())
	}
}
