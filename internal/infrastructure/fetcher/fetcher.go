package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"NewsSum/internal/config"
	"NewsSum/internal/ports"
)

const defaultMaxBody = 5 << 20

// Fetcher downloads article pages and hands back their HTML as UTF-8 text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    *slog.Logger
}

var _ ports.ContentFetcher = (*Fetcher)(nil)

// New builds a fetcher with a dial timeout and an overall request timeout.
// Redirects follow net/http's default policy.
func New(cfg config.FetcherConfig, log *slog.Logger) *Fetcher {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}
	return NewWithClient(&http.Client{Transport: transport, Timeout: cfg.Timeout}, cfg, log)
}

// NewWithClient wires an existing HTTP client; the client's timeouts are kept as-is.
func NewWithClient(client *http.Client, cfg config.FetcherConfig, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
		logger:    log,
	}
}

// Fetch returns the page HTML and true, or "" and false on any failure.
// Only 2xx responses with an HTML content type count as success.
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		f.logger.Error("build content request", "url", link, "error", err)
		return "", false
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	f.logger.Debug("fetch content", "url", link)
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("request content", "url", link, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Error("content returned error status", "url", link, "status", resp.StatusCode)
		return "", false
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") {
		f.logger.Warn("content is not html, skipping", "url", link, "content_type", contentType)
		return "", false
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBody), contentType)
	if err != nil {
		f.logger.Error("detect content charset", "url", link, "error", err)
		return "", false
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		f.logger.Error("read content", "url", link, "error", err)
		return "", false
	}

	f.logger.Debug("fetched content", "url", link, "bytes", len(raw))
	return string(raw), true
}
