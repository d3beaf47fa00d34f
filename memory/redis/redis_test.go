package redis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/promptmesh/memory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient keeps hashes and lists in maps.
type fakeClient struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	lists  map[string][]string
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{hashes: map[string]map[string]string{}, lists: map[string][]string{}}
}

func (f *fakeClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	h := f.hashes[key]
	if h == nil {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeClient) RPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeClient) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	n := int64(len(l))
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	if start > stop || start >= n {
		return redis.NewStringSliceResult([]string{}, nil)
	}
	return redis.NewStringSliceResult(append([]string(nil), l[start:stop+1]...), nil)
}

func (f *fakeClient) LRem(_ context.Context, key string, _ int64, value any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	for i, v := range l {
		if v == value.(string) {
			f.lists[key] = append(l[:i:i], l[i+1:]...)
			return redis.NewIntResult(1, nil)
		}
	}
	return redis.NewIntResult(0, nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestBackend_StoreSearchDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	b := NewFromClient(client, func(o *Options) { o.Prefix = "test" })

	id1, err := b.Store(ctx, "agent", "golang channels", map[string]any{"source": "web"})
	require.NoError(t, err)
	_, err = b.Store(ctx, "agent", "golang generics", nil)
	require.NoError(t, err)

	assert.Len(t, client.lists["test:agent:ids"], 2)
	assert.Equal(t, "golang channels", client.hashes["test:agent:"+id1]["content"])

	res, err := b.Search(ctx, "agent", "channels", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, id1, res[0].ID)
	assert.Equal(t, "web", res[0].Metadata["source"])

	res, err = b.Search(ctx, "agent", "", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "golang generics", res[0].Content, "newest first")

	require.NoError(t, b.Delete(ctx, "agent", id1))
	assert.ErrorIs(t, b.Delete(ctx, "agent", id1), memory.ErrNotFound)

	res, _ = b.Search(ctx, "agent", "channels", 5)
	assert.Empty(t, res)
}

func TestBackend_MaxScan(t *testing.T) {
	ctx := context.Background()
	b := NewFromClient(newFakeClient(), func(o *Options) { o.MaxScan = 1 })

	_, _ = b.Store(ctx, "a", "old match", nil)
	_, _ = b.Store(ctx, "a", "new", nil)

	res, err := b.Search(ctx, "a", "match", 5)
	require.NoError(t, err)
	assert.Empty(t, res, "only the newest chunk is scanned")
}

func TestBackend_StoreError(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")

	_, err := NewFromClient(client).Store(context.Background(), "a", "x", nil)
	assert.ErrorContains(t, err, "connection refused")
}

func TestBackend_WithMemories(t *testing.T) {
	ctx := context.Background()
	m := memory.New("AGiXT", func(o *memory.Options) { o.Backend = NewFromClient(newFakeClient()) })

	require.NoError(t, m.Store(ctx, "q", "redis keeps the answer"))
	got, err := m.ContextFor(ctx, "answer", 3)
	require.NoError(t, err)
	assert.Equal(t, "redis keeps the answer", got)
}
