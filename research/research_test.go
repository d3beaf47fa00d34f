package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstLinkPicker answers WebSearch with queries and Pick-a-Link with the
// first offered link.
func firstLinkPicker(queries string) (GeneratorFunc, *[]core.InteractionRequest) {
	var seen []core.InteractionRequest
	return func(_ context.Context, req core.InteractionRequest) (string, error) {
		seen = append(seen, req)
		switch req.Template {
		case TemplateWebSearch:
			return queries, nil
		case TemplatePickLink:
			links := req.Bindings[BindingLinks].(string)
			return strings.Split(links, "\n")[0], nil
		}
		return "", errors.New("unexpected template " + req.Template)
	}, &seen
}

func TestResearch_CycleFetchesEachPageOnce(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.Pages["https://a.example"] = testutil.PageNode{Content: "A", Links: []string{"https://b.example"}}
	mem.Pages["https://b.example"] = testutil.PageNode{Content: "B", Links: []string{"https://a.example"}}

	searcher := &testutil.MapSearcher{Results: map[string][]string{"rockets": {"https://a.example"}}}
	gen, _ := firstLinkPicker("1. rockets")

	agent := New(gen, mem, nil, func(o *Options) { o.Searcher = searcher })
	require.NoError(t, agent.Research(context.Background(), "tell me about rockets", 3))

	assert.Equal(t, 1, mem.FetchCount("https://a.example"))
	assert.Equal(t, 1, mem.FetchCount("https://b.example"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, agent.Links().List())
	assert.Equal(t, []string{"rockets"}, searcher.Queries())
}

func TestResearch_DepthFirstOrderAndTruncation(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.Pages["https://1.example"] = testutil.PageNode{Links: []string{"https://1a.example", "https://x.example", "https://y.example", "https://z.example"}}
	mem.Pages["https://1a.example"] = testutil.PageNode{}
	mem.Pages["https://2.example"] = testutil.PageNode{}

	searcher := &testutil.MapSearcher{Results: map[string][]string{
		"q": {"https://1.example", "https://2.example", "https://3.example"},
	}}
	gen, seen := firstLinkPicker("q")

	agent := New(gen, mem, nil, func(o *Options) { o.Searcher = searcher })
	require.NoError(t, agent.Research(context.Background(), "q", 2))

	assert.Equal(t, []string{"https://1.example", "https://1a.example", "https://2.example"}, mem.FetchOrder(),
		"picked link is followed before the next search result; results are cut to depth")

	var offered string
	for _, r := range *seen {
		if r.Template == TemplatePickLink {
			offered = r.Bindings[BindingLinks].(string)
		}
	}
	assert.Equal(t, "https://1a.example\nhttps://x.example\nhttps://y.example", offered, "at most three links are offered")
}

func TestResearch_NoneStopsAndFetchFailureSkipsBranch(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.Pages["https://ok.example"] = testutil.PageNode{Links: []string{"https://next.example"}}
	mem.Pages["https://broken.example"] = testutil.PageNode{Err: errors.New("timeout")}

	searcher := &testutil.MapSearcher{Results: map[string][]string{
		"q": {"https://broken.example", "ftp://skip.example", "https://ok.example"},
	}}

	gen := GeneratorFunc(func(_ context.Context, req core.InteractionRequest) (string, error) {
		if req.Template == TemplateWebSearch {
			return "q", nil
		}
		return "None of these links are relevant.", nil
	})

	agent := New(gen, mem, nil, func(o *Options) { o.Searcher = searcher })
	require.NoError(t, agent.Research(context.Background(), "q", 5))

	assert.Equal(t, []string{"https://broken.example", "https://ok.example"}, mem.FetchOrder())
	assert.Zero(t, mem.FetchCount("https://next.example"))
}

func TestResearch_SharedLinkSetAcrossSessions(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.Pages["https://a.example"] = testutil.PageNode{}
	searcher := &testutil.MapSearcher{Results: map[string][]string{"q": {"https://a.example"}}}
	gen, _ := firstLinkPicker("q")

	links := NewLinkSet()
	agent := New(gen, mem, links, func(o *Options) { o.Searcher = searcher })

	require.NoError(t, agent.Research(context.Background(), "q", 3))
	require.NoError(t, agent.Research(context.Background(), "q", 3))
	assert.Equal(t, 1, mem.FetchCount("https://a.example"))

	links.Reset()
	require.NoError(t, agent.Research(context.Background(), "q", 3))
	assert.Equal(t, 2, mem.FetchCount("https://a.example"))
}

func TestResearch_SearchDisabledOrFailing(t *testing.T) {
	mem := testutil.NewStubMemory()
	gen, _ := firstLinkPicker("one\ntwo")

	require.NoError(t, New(gen, mem, nil).Research(context.Background(), "q", 3))

	failing := &testutil.MapSearcher{Err: errors.New("unreachable")}
	require.NoError(t, New(gen, mem, nil, func(o *Options) { o.Searcher = failing }).Research(context.Background(), "q", 3))
	assert.Equal(t, []string{"one", "two"}, failing.Queries())
	assert.Empty(t, mem.FetchOrder())
}

func TestResearch_QueryGenerationFails(t *testing.T) {
	boom := errors.New("exhausted")
	gen := GeneratorFunc(func(context.Context, core.InteractionRequest) (string, error) { return "", boom })

	err := New(gen, testutil.NewStubMemory(), nil).Research(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
}

func TestSearchQueries(t *testing.T) {
	got := SearchQueries("1. first query\n\n2.second\n  \n10. . tenth\nplain")
	assert.Equal(t, []string{"first query", "second", "tenth", "plain"}, got)
}

func TestWebLinks(t *testing.T) {
	got := WebLinks([]string{"Link:https://a.example/x", "http://b.example", "ftp://c.example", "word", "https://"})
	assert.Equal(t, []string{"https://a.example/x", "http://b.example"}, got)
}

func TestLinkSet(t *testing.T) {
	s := NewLinkSet()
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Contains("a"))
	assert.Equal(t, 1, s.Len())
	s.Reset()
	assert.Zero(t, s.Len())
	assert.False(t, s.Contains("a"))
}
