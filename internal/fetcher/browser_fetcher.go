package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/deidaraiorek/spidey/internal/core"
)

// BrowserFetcher renders pages in headless Chrome so script-built documents
// are indexed as a user would see them. One browser is shared by all fetches;
// each fetch gets its own tab.
type BrowserFetcher struct {
	userAgent string
	timeout   time.Duration
	checker   Checker

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BrowserFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		checker:   New(userAgent, timeout),
	}
}

func (bf *BrowserFetcher) browser() (context.Context, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browserCtx != nil {
		return bf.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(bf.userAgent),
		chromedp.Flag("disable-downloads", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	bf.browserCtx = browserCtx
	bf.allocCancel = allocCancel
	bf.browserCancel = browserCancel
	return browserCtx, nil
}

func (bf *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	if err := bf.checker.Check(ctx, urlStr); err != nil {
		return nil, err
	}

	browserCtx, err := bf.browser()
	if err != nil {
		return nil, &core.FetchError{URL: urlStr, Err: err}
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, bf.timeout)
	defer timeoutCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var (
		htmlContent  string
		lastModified string
		finalURL     string
	)
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(urlStr),
		chromedp.OuterHTML("html", &htmlContent),
		chromedp.Evaluate(`document.lastModified`, &lastModified),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, &core.FetchError{URL: urlStr, Err: fmt.Errorf("browser fetch failed: %w", err)}
	}

	return &Page{
		URL:          urlStr,
		FinalURL:     finalURL,
		HTML:         []byte(htmlContent),
		LastModified: lastModified,
		StatusCode:   200,
	}, nil
}

func (bf *BrowserFetcher) Check(ctx context.Context, urlStr string) error {
	return bf.checker.Check(ctx, urlStr)
}

// Close shuts the shared browser down.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browserCtx == nil {
		return nil
	}
	bf.browserCancel()
	bf.allocCancel()
	bf.browserCtx = nil
	return nil
}
