package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
)

func TestParse_SplitsCommaValues(t *testing.T) {
	t.Parallel()

	spec, err := query.Parse([]string{"post_type=post,page", "status=publish"})
	require.NoError(t, err)

	assert.Equal(t, []string{query.KeyCategory, query.KeyStatus}, spec.Keys())
	assert.Equal(t, []string{"post", "page"}, spec.Values(query.KeyCategory))
	assert.Equal(t, []string{"publish"}, spec.Values(query.KeyStatus))
}

func TestParse_RejectsReservedKeys(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"order", "orderby", "paged", "OrderBy"} {
		_, err := query.Parse([]string{key + "=x"})
		require.ErrorIs(t, err, query.ErrReservedKey, key)
	}
}

func TestParse_RejectsUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := query.Parse([]string{"colour=blue"})
	require.ErrorIs(t, err, query.ErrUnknownFilter)
}

func TestParse_RejectsMissingEquals(t *testing.T) {
	t.Parallel()

	_, err := query.Parse([]string{"post_type"})
	require.ErrorIs(t, err, query.ErrMalformed)
}

func TestFingerprint_IgnoresOrder(t *testing.T) {
	t.Parallel()

	a, err := query.Parse([]string{"category=post,page", "status=publish"})
	require.NoError(t, err)

	b, err := query.Parse([]string{"post_status=publish", "post_type=page,post"})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 32)
}

func TestFingerprint_DistinctFilters(t *testing.T) {
	t.Parallel()

	a, err := query.Parse([]string{"category=post"})
	require.NoError(t, err)

	b, err := query.Parse([]string{"category=page"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), query.Spec{}.Fingerprint())
}

func TestWith_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	base, err := query.Parse([]string{"status=draft"})
	require.NoError(t, err)

	extended := base.With(query.KeyCategory, "post")

	assert.False(t, base.Has(query.KeyCategory))
	assert.Equal(t, []string{query.KeyStatus, query.KeyCategory}, extended.Keys())
	assert.Equal(t, base.Fingerprint(), base.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), extended.Fingerprint())
}

func TestMatchesAnyCategory(t *testing.T) {
	t.Parallel()

	assert.True(t, query.Spec{}.MatchesAnyCategory())

	anySpec, err := query.Parse([]string{"post_type=any"})
	require.NoError(t, err)
	assert.True(t, anySpec.MatchesAnyCategory())

	postSpec, err := query.Parse([]string{"post_type=post"})
	require.NoError(t, err)
	assert.False(t, postSpec.MatchesAnyCategory())
}
