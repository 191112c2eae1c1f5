package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	ee := Newf("something broke").Build()

	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, "something broke", ee.Error())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderMetadata(t *testing.T) {
	base := NewStd("disk full")
	ee := New(base).
		Category(CategoryMedia).
		Component("mediastore").
		Context("path", "sign_data_videos/A_123.mp4").
		Build()

	assert.Equal(t, "media-storage", ee.GetCategory())
	assert.Equal(t, "mediastore", ee.Component)
	assert.True(t, Is(ee, base), "wrapped error should match the original")

	ctx := ee.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "sign_data_videos/A_123.mp4", ctx["path"])

	// Mutating the returned copy must not affect the error.
	ctx["path"] = "elsewhere"
	assert.Equal(t, "sign_data_videos/A_123.mp4", ee.GetContext()["path"])
}

func TestIsMatchesCategory(t *testing.T) {
	a := Newf("a").Category(CategoryDatabase).Build()
	b := Newf("b").Category(CategoryDatabase).Build()
	c := Newf("c").Category(CategoryNetwork).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestHasCategory(t *testing.T) {
	ee := Newf("session in wrong state").Category(CategoryState).Build()
	wrapped := fmt.Errorf("transition failed: %w", ee)

	assert.True(t, HasCategory(wrapped, CategoryState))
	assert.False(t, HasCategory(wrapped, CategoryDatabase))
	assert.False(t, HasCategory(NewStd("plain"), CategoryState))
	assert.False(t, HasCategory(nil, CategoryState))
}

func TestCategoryOf(t *testing.T) {
	ee := Newf("no such session").Category(CategoryNotFound).Build()

	assert.Equal(t, CategoryNotFound, CategoryOf(fmt.Errorf("lookup: %w", ee)))
	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))
}

func TestUnwrapChain(t *testing.T) {
	base := NewStd("record not found")
	wrapped := fmt.Errorf("getting user: %w", base)
	ee := New(wrapped).Category(CategoryNotFound).Build()

	assert.True(t, Is(ee, base))

	var target *EnhancedError
	assert.True(t, As(ee, &target))
	assert.Equal(t, CategoryNotFound, target.Category)
}
