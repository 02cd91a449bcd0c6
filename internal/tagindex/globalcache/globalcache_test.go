package globalcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/passion1014/axlrator-continue/internal/catalog"
)

func TestReader_HasAny(t *testing.T) {
	cat, err := catalog.Open("", catalog.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	tag := catalog.Tag{Directory: "/repo", Branch: "main", ArtifactID: "chunks"}
	require.NoError(t, cat.Apply(tag, []catalog.PathAndCacheKey{{Path: "a.go", CacheKey: "key1"}}, catalog.Compute))

	r := New(cat)

	has, err := r.HasAny("key1", "chunks")
	require.NoError(t, err)
	require.True(t, has)

	has, err = r.HasAny("key1", "lancedb")
	require.NoError(t, err)
	require.False(t, has)

	tags, err := r.TagsFor("key1", "chunks")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, tag, tags[0])
}
