package browse

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	// MaxBytes bounds the body size read per page.
	MaxBytes int64
	Logger   logging.Logger
}

// HTTPFetcher is a core.PageFetcher using a plain HTTP GET.
type HTTPFetcher struct {
	opts   HTTPOptions
	logger logging.Logger
}

var _ core.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(optFns ...func(o *HTTPOptions)) *HTTPFetcher {
	opts := HTTPOptions{
		Client:    http.DefaultClient,
		UserAgent: "Mozilla/5.0 (compatible; promptmesh/1.0)",
		Timeout:   60 * time.Second,
		MaxBytes:  2 << 20,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &HTTPFetcher{opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// Fetch implements core.PageFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*core.Page, error) {
	if !IsWebURL(pageURL) {
		return nil, fmt.Errorf("not a web url: %q", pageURL)
	}

	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, f.opts.MaxBytes)

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "text/plain") || mediaType == "text/markdown" {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return &core.Page{URL: pageURL, Content: strings.TrimSpace(string(b))}, nil
	}

	page, err := ParseHTML(pageURL, body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	f.logger.Debug("browse.fetched", "url", pageURL, "chars", len(page.Content), "links", len(page.Links))

	return page, nil
}
