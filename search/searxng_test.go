package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearXNG_Search(t *testing.T) {
	var gotQuery, gotFormat, gotCategories string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotCategories = r.URL.Query().Get("categories")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"query":"go","results":[{"url":"https://go.dev","title":"Go"},{"title":"no url"},{"url":"https://pkg.go.dev"}]}`)
	}))
	defer srv.Close()

	s := NewSearXNG(srv.URL+"/", func(o *Options) {
		o.Client = srv.Client()
		o.Categories = []string{"general", "it"}
	})
	require.True(t, s.Enabled())

	urls, err := s.Search(context.Background(), "go generics")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://go.dev", "https://pkg.go.dev"}, urls)
	assert.Equal(t, "go generics", gotQuery)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "general,it", gotCategories)
}

func TestSearXNG_Disabled(t *testing.T) {
	s := NewSearXNG("  ")
	assert.False(t, s.Enabled())

	urls, err := s.Search(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Empty(t, urls)
}

func TestSearXNG_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "bad" {
			fmt.Fprint(w, "<html>not json</html>")
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSearXNG(srv.URL, func(o *Options) { o.Client = srv.Client() })

	_, err := s.Search(context.Background(), "limited")
	assert.ErrorContains(t, err, "429")

	_, err = s.Search(context.Background(), "bad")
	assert.ErrorContains(t, err, "invalid JSON")
}
