package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts inner calls to verify cache behavior.
type countingEmbedder struct {
	inner Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *countingEmbedder) Close() error      { return c.inner.Close() }

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	// Given: a cached embedder over a counting inner
	counting := &countingEmbedder{inner: NewStaticEmbedder(64)}
	cached := NewCachedEmbedder(counting, 10)

	// When: embedding the same text twice
	first, err := cached.Embed(context.Background(), "repeated chunk")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "repeated chunk")
	require.NoError(t, err)

	// Then: one inner call, identical vectors
	assert.Equal(t, int64(1), counting.calls.Load())
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_BatchOnlyComputesMisses(t *testing.T) {
	counting := &countingEmbedder{inner: NewStaticEmbedder(64)}
	cached := NewCachedEmbedder(counting, 10)

	_, err := cached.Embed(context.Background(), "warm")
	require.NoError(t, err)
	counting.calls.Store(0)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"warm", "cold-1", "cold-2"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, int64(2), counting.calls.Load(), "only misses hit the inner embedder")
	for i, v := range vecs {
		assert.Len(t, v, 64, "result %d", i)
	}
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(64), 10)
	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCachedEmbedder_PassThroughAccessors(t *testing.T) {
	inner := NewStaticEmbedder(128)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 128, cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.NoError(t, cached.Close())
}
