package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/glyph/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("hello", 16)
	b := DeterministicVector("hello", 16)
	c := DeterministicVector("world", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary(32)

	paris := v.Vector("Paris is the capital of France")
	bananas := v.Vector("Bananas are yellow fruit")
	query := v.Vector("capital of France")

	var dotParis, dotBananas float64
	for i := range query {
		dotParis += float64(query[i]) * float64(paris[i])
		dotBananas += float64(query[i]) * float64(bananas[i])
	}
	assert.InDelta(t, 3/math.Sqrt(18), dotParis, 1e-5)
	assert.Zero(t, dotBananas)

	assert.Equal(t, paris, v.Vector("paris, IS the capital of france!"))
	assert.Panics(t, func() { NewVocabulary(1).Vector("two words") })
}

func TestMockProvider_Defaults(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider()

	vec, err := p.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimension)

	tags, err := p.GenerateTags(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"mock", "test"}, tags)

	out, err := p.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	assert.Equal(t, 3, p.CallCount())
	assert.Equal(t, 1, p.EmbedCallCount())

	p.Reset()
	assert.Zero(t, p.CallCount())
}

func TestFailingProvider(t *testing.T) {
	boom := errors.New("boom")
	p := NewFailingProvider("down", boom)

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	_, err = p.Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "down", p.Name())
}
