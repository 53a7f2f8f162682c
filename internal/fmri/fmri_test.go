package fmri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgpress.run/internal/fmri"
)

func TestParseFull(t *testing.T) {
	t.Parallel()

	f, err := fmri.Parse("pkg://test/web/server@1.0,5.11-0.175:20240101T101500Z")
	require.NoError(t, err)

	assert.Equal(t, "test", f.Publisher)
	assert.Equal(t, "web/server", f.Name)
	require.True(t, f.HasVersion())
	assert.Equal(t, "1.0", f.Version.Release)
	assert.Equal(t, "5.11", f.Version.Build)
	assert.Equal(t, "0.175", f.Version.Branch)
	assert.Equal(t, "20240101T101500Z", f.Version.Timestamp)
}

func TestParseNoPublisher(t *testing.T) {
	t.Parallel()

	f, err := fmri.Parse("foo@1.0,5.11-0")
	require.NoError(t, err)

	assert.Empty(t, f.Publisher)
	assert.Equal(t, "foo", f.Name)
	require.True(t, f.HasVersion())
	assert.Equal(t, "1.0", f.Version.Release)
	assert.Equal(t, "0", f.Version.Branch)
	assert.Equal(t, "foo@1.0,5.11-0", f.String())
}

func TestParseNoVersion(t *testing.T) {
	t.Parallel()

	f, err := fmri.Parse("pkg://test/foo")
	require.NoError(t, err)

	assert.False(t, f.HasVersion())
	assert.Equal(t, "pkg://test/foo", f.String())
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"@1.0",
		"pkg://test",
		"pkg://test/",
		"foo@",
		"foo@,5.11",
		"foo@1.0:",
	} {
		_, err := fmri.Parse(raw)

		var invalidErr *fmri.InvalidError
		require.ErrorAs(t, err, &invalidErr, "parsing %q", raw)
	}
}

func TestWithoutTimestamp(t *testing.T) {
	t.Parallel()

	f := fmri.MustParse("pkg://test/foo@1.0,5.11-0:20240101T101500Z")
	stripped := f.WithoutTimestamp()

	assert.Equal(t, "pkg://test/foo@1.0,5.11-0", stripped.String())
	// The original is untouched.
	assert.Equal(t, "20240101T101500Z", f.Version.Timestamp)
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"pkg://test/foo@1.0,5.11-0",
		"foo/bar@2.4",
		"foo",
	} {
		f, err := fmri.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, f.String())
	}
}
