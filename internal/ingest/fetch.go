package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ppiankov/ugp/internal/model"
)

// Fetcher reads datasets published over http(s)
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a fetcher from the http settings
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// Fetch downloads and decodes the dataset at rawURL.
// The format comes from the URL extension, or the Content-Type when the path has none.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (model.ThermoDataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.ThermoDataset{}, ingestErr("create request: %v", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ThermoDataset{}, model.Aborted(ctxErr)
		}
		return model.ThermoDataset{}, model.WithKind(model.ErrIngestion, fmt.Errorf("fetch: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ThermoDataset{}, ingestErr("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	format, ok := formatOf(resp.Request.URL, resp.Header.Get("Content-Type"))
	if !ok {
		return model.ThermoDataset{}, ingestErr("fetch %s: cannot tell dataset format (content type %q)", rawURL, resp.Header.Get("Content-Type"))
	}

	// one byte past the limit tells a full body from a truncated one
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return model.ThermoDataset{}, model.WithKind(model.ErrIngestion, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBytes {
		return model.ThermoDataset{}, ingestErr("fetch %s: dataset exceeds %d bytes", rawURL, f.maxBytes)
	}

	ds, err := Decode(bytes.NewReader(body), format)
	if err != nil {
		return model.ThermoDataset{}, fmt.Errorf("%s: %w", rawURL, err)
	}
	return ds, nil
}

func formatOf(u *url.URL, contentType string) (Format, bool) {
	if format, ok := extensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return format, true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return FormatJSON, true
	case strings.Contains(mediaType, "yaml"):
		return FormatYAML, true
	}
	return "", false
}

// proxyFunc uses the configured proxies and falls back to the environment
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// IsRemote reports whether source names an http(s) resource
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Loader reads datasets from local paths or http(s) URLs
type Loader struct {
	fetcher *Fetcher
}

// NewLoader creates a loader using cfg for remote sources
func NewLoader(cfg model.HTTPConfig) *Loader {
	return &Loader{fetcher: NewFetcher(cfg)}
}

// Load reads the dataset named by source
func (l *Loader) Load(ctx context.Context, source string) (model.ThermoDataset, error) {
	if IsRemote(source) {
		return l.fetcher.Fetch(ctx, source)
	}
	return Read(source)
}
