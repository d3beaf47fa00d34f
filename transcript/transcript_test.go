package transcript

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/promptmesh/core"
)

func TestInMemory_AppendAndList(t *testing.T) {
	fixed := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	store := NewInMemory(func(o *Options) { o.Now = func() time.Time { return fixed } })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, core.TranscriptEntry{Agent: "AGiXT", Role: "USER", Message: fmt.Sprint(i)}))
	}
	require.NoError(t, store.Append(ctx, core.TranscriptEntry{Agent: "Other", Role: "USER", Message: "x"}))

	all, err := store.List(ctx, "AGiXT", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.NotEmpty(t, all[0].ID)
	assert.NotEqual(t, all[0].ID, all[1].ID)
	assert.Equal(t, fixed, all[0].Timestamp)

	last, err := store.List(ctx, "AGiXT", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "2", last[0].Message)
	assert.Equal(t, "3", last[1].Message)

	none, err := store.List(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemory_RejectsMissingAgent(t *testing.T) {
	err := NewInMemory().Append(context.Background(), core.TranscriptEntry{Role: "USER"})
	assert.ErrorIs(t, err, ErrMissingAgent)
}

func TestPrepare_KeepsExplicitValues(t *testing.T) {
	ts := time.Unix(100, 0).UTC()
	e, err := Prepare(core.TranscriptEntry{ID: "id-1", Agent: "a", Timestamp: ts}, time.Now)
	require.NoError(t, err)
	assert.Equal(t, "id-1", e.ID)
	assert.Equal(t, ts, e.Timestamp)
}
