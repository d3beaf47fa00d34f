package rod

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	f := New(func(o *Options) { o.Timeout = time.Second })
	assert.True(t, f.opts.Headless)
	assert.Equal(t, time.Second, f.opts.Timeout)
	require.NoError(t, f.Close(), "closing an unused fetcher is a no-op")
}

func TestFetch_RejectsNonWebURL(t *testing.T) {
	f := New()
	_, err := f.Fetch(context.Background(), "javascript:alert(1)")
	assert.ErrorContains(t, err, "not a web url")
	assert.Nil(t, f.browser, "browser is not started for rejected urls")
}
