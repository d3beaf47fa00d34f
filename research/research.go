package research

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/promptmesh/browse"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// Template names used by a session.
const (
	TemplateWebSearch = "WebSearch"
	TemplatePickLink  = "Pick-a-Link"
)

// BindingLinks carries the candidate links into the Pick-a-Link template.
const BindingLinks = "links"

// DefaultMaxLinks is how many outbound links the model may choose from.
const DefaultMaxLinks = 3

// Generator runs a full interaction for the given request.
type Generator interface {
	Run(ctx context.Context, req core.InteractionRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req core.InteractionRequest) (string, error)

// Run implements Generator.
func (f GeneratorFunc) Run(ctx context.Context, req core.InteractionRequest) (string, error) {
	return f(ctx, req)
}

// Options configures an Agent.
type Options struct {
	// Searcher looks up the generated queries. Nil disables searching.
	Searcher core.Searcher
	MaxLinks int
	Logger   logging.Logger
}

// Agent runs research sessions. The LinkSet is owned by the caller and
// shared by all sessions until it is reset.
type Agent struct {
	gen    Generator
	memory core.MemoryStore
	links  *LinkSet
	opts   Options
	logger logging.Logger
}

// New creates an Agent. A nil links set gets a private one.
func New(gen Generator, memory core.MemoryStore, links *LinkSet, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxLinks: DefaultMaxLinks,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if links == nil {
		links = NewLinkSet()
	}

	return &Agent{
		gen:    gen,
		memory: memory,
		links:  links,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Links returns the visited set.
func (a *Agent) Links() *LinkSet { return a.links }

// Research runs one session for query keeping at most depth search results
// per generated query. Search and fetch failures are logged and skipped;
// only a failure to generate the queries is returned.
func (a *Agent) Research(ctx context.Context, query string, depth int) error {
	reply, err := a.gen.Run(ctx, core.NewRequest(query, func(r *core.InteractionRequest) {
		r.Template = TemplateWebSearch
	}))
	if err != nil {
		return fmt.Errorf("generate search queries: %w", err)
	}

	for _, q := range SearchQueries(reply) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if a.opts.Searcher == nil {
			a.logger.Debug("research.search.disabled", "query", q)
			continue
		}

		results, err := a.opts.Searcher.Search(ctx, q)
		if err != nil {
			a.logger.Warn("research.search.failed", "query", q, "error", err.Error())
			continue
		}

		if len(results) > depth {
			results = results[:depth]
		}

		a.browse(ctx, query, results)
	}

	return nil
}

// browse walks links depth first. A link picked on a page is visited before
// the remaining siblings of that page.
func (a *Agent) browse(ctx context.Context, query string, start []string) {
	stack := pushReversed(nil, WebLinks(start))

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}

		url := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !a.links.Add(url) {
			continue
		}

		a.logger.Info("research.browse", "url", url)

		_, outbound, err := a.memory.FetchPage(ctx, url)
		if err != nil {
			a.logger.Warn("research.fetch.failed", "url", url, "error", err.Error())
			continue
		}

		if len(outbound) == 0 {
			continue
		}

		if len(outbound) > a.opts.MaxLinks {
			outbound = outbound[:a.opts.MaxLinks]
		}

		pick, err := a.gen.Run(ctx, core.NewRequest(query, func(r *core.InteractionRequest) {
			r.Template = TemplatePickLink
			r.Bindings[BindingLinks] = strings.Join(outbound, "\n")
		}))
		if err != nil {
			a.logger.Warn("research.pick.failed", "url", url, "error", err.Error())
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(pick), "None") {
			continue
		}

		stack = pushReversed(stack, WebLinks(strings.Fields(pick)))
	}
}

func pushReversed(stack, links []string) []string {
	links = slices.Clone(links)
	slices.Reverse(links)

	return append(stack, links...)
}

// SearchQueries splits a WebSearch reply into queries, stripping list
// numbering and dropping blank lines.
func SearchQueries(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		q := strings.TrimSpace(strings.TrimLeft(line, "0123456789. "))
		if q != "" {
			out = append(out, q)
		}
	}

	return out
}

// WebLinks keeps the http(s) URLs among tokens. Text before the scheme, as
// in "Link:https://...", is cut off.
func WebLinks(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if i := strings.Index(t, "http"); i > 0 {
			t = t[i:]
		}

		if browse.IsWebURL(t) {
			out = append(out, t)
		}
	}

	return out
}
