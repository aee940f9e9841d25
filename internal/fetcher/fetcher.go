package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deidaraiorek/spidey/internal/core"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxBodySize    = 10 << 20
)

// Page is a fetched document.
type Page struct {
	// URL the page was requested with.
	URL string
	// FinalURL is where redirects ended; relative links resolve against it.
	FinalURL     string
	HTML         []byte
	LastModified string
	StatusCode   int
}

// PageFetcher retrieves the HTML of a URL. Every failure is reported as a
// *core.FetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Checker confirms that a URL is reachable without downloading it.
type Checker interface {
	Check(ctx context.Context, url string) error
}

// Fetcher is the plain net/http PageFetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

func New(userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodGet, urlStr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isHTMLContentType(contentType) {
		return nil, &core.FetchError{URL: urlStr, Err: fmt.Errorf("unsupported content type %q", contentType)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, &core.FetchError{URL: urlStr, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Page{
		URL:          urlStr,
		FinalURL:     resp.Request.URL.String(),
		HTML:         body,
		LastModified: resp.Header.Get("Last-Modified"),
		StatusCode:   resp.StatusCode,
	}, nil
}

// Check issues a HEAD request, falling back to GET for servers that do not
// implement HEAD.
func (f *Fetcher) Check(ctx context.Context, urlStr string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodHead, urlStr)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = f.do(ctx, http.MethodGet, urlStr)
		if err != nil {
			return err
		}
		resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.FetchError{URL: urlStr, StatusCode: resp.StatusCode}
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, method, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, &core.FetchError{URL: urlStr, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", f.timeout, err)
		}
		return nil, &core.FetchError{URL: urlStr, Err: err}
	}
	return resp, nil
}

func isHTMLContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	htmlTypes := []string{
		"text/html",
		"application/xhtml+xml",
		"application/xhtml",
	}

	for _, htmlType := range htmlTypes {
		if strings.HasPrefix(contentType, htmlType) {
			return true
		}
	}
	return false
}
