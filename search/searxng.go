package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/tidwall/gjson"
)

// SettingInstanceURL is the agent setting holding the SearXNG address.
const SettingInstanceURL = "SEARXNG_INSTANCE_URL"

// Options configures a SearXNG client.
type Options struct {
	Client  *http.Client
	Timeout time.Duration
	// Categories restricts the SearXNG categories searched; empty uses the
	// instance default.
	Categories []string
	Logger     logging.Logger
}

// SearXNG is a core.Searcher backed by the SearXNG JSON API. An empty
// instance URL disables searching: Search then returns no results and no
// error.
type SearXNG struct {
	instanceURL string
	opts        Options
	logger      logging.Logger
}

var _ core.Searcher = (*SearXNG)(nil)

// NewSearXNG creates a client for instanceURL.
func NewSearXNG(instanceURL string, optFns ...func(o *Options)) *SearXNG {
	opts := Options{
		Client:  http.DefaultClient,
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SearXNG{
		instanceURL: strings.TrimRight(strings.TrimSpace(instanceURL), "/"),
		opts:        opts,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Enabled reports whether an instance is configured.
func (s *SearXNG) Enabled() bool { return s.instanceURL != "" }

// Search implements core.Searcher.
func (s *SearXNG) Search(ctx context.Context, query string) ([]string, error) {
	if !s.Enabled() {
		s.logger.Debug("search.disabled", "query", query)
		return nil, nil
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if len(s.opts.Categories) > 0 {
		params.Set("categories", strings.Join(s.opts.Categories, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.instanceURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searxng request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng search: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("searxng read: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("searxng search: invalid JSON response")
	}

	var urls []string
	gjson.GetBytes(body, "results.#.url").ForEach(func(_, v gjson.Result) bool {
		if u := v.String(); u != "" {
			urls = append(urls, u)
		}
		return true
	})

	s.logger.Debug("search.results", "query", query, "count", len(urls))

	return urls, nil
}
