package actions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgpress.run/internal/actions"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a, err := actions.New("dir", []string{"path=usr/bin", "mode=0755", "owner=root"})
	require.NoError(t, err)

	assert.Equal(t, "dir", a.Name)
	assert.Equal(t, "usr/bin", a.Attrs["path"])
	assert.Equal(t, "0755", a.Attrs["mode"])
	assert.False(t, a.HasPayload())
}

func TestNewFileDefaultsHashToPath(t *testing.T) {
	t.Parallel()

	a, err := actions.New("file", []string{"path=usr/bin/ls", "mode=0555"})
	require.NoError(t, err)

	assert.True(t, a.HasPayload())
	assert.Equal(t, "usr/bin/ls", a.Hash)
}

func TestNewRejectsMalformedOperands(t *testing.T) {
	t.Parallel()

	for _, kvs := range [][]string{
		{"pathusr/bin"},
		{"=value"},
		{"path=a", "path=b"},
	} {
		_, err := actions.New("dir", kvs)

		var invalidErr *actions.InvalidActionError
		require.ErrorAs(t, err, &invalidErr, "operands %v", kvs)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	a, err := actions.ParseLine(`file abc123 path=usr/bin/ls mode=0555 owner=root group=bin`)
	require.NoError(t, err)

	assert.Equal(t, "file", a.Name)
	assert.Equal(t, "abc123", a.Hash)
	assert.Equal(t, "usr/bin/ls", a.Attrs["path"])
	assert.Equal(t, "bin", a.Attrs["group"])
}

func TestParseLineQuotedValues(t *testing.T) {
	t.Parallel()

	a, err := actions.ParseLine(`set name=pkg.summary value="a summary with spaces"`)
	require.NoError(t, err)

	assert.Equal(t, "a summary with spaces", a.Attrs["value"])
}

func TestParseLineEscapes(t *testing.T) {
	t.Parallel()

	a, err := actions.ParseLine(`set name=x value="say \"hi\""`)
	require.NoError(t, err)

	assert.Equal(t, `say "hi"`, a.Attrs["value"])
}

func TestParseLineErrors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		`set name=x value="unterminated`,
		`dir deadbeef path=usr`, // hash token on a payload-free action
	} {
		_, err := actions.ParseLine(line)
		require.Error(t, err, "line %q", line)
	}
}

func TestIsIdentity(t *testing.T) {
	t.Parallel()

	for line, want := range map[string]bool{
		"set name=pkg.fmri value=pkg://test/foo@1.0": true,
		"set name=fmri value=foo@1.0":                true,
		"set name=pkg.summary value=sum":             false,
		"file path=usr/bin/ls":                       false,
	} {
		a, err := actions.ParseLine(line)
		require.NoError(t, err)
		assert.Equal(t, want, a.IsIdentity(), "line %q", line)
	}
}

func TestStripDerivedIdempotent(t *testing.T) {
	t.Parallel()

	a, err := actions.ParseLine(
		"file path=usr/bin/ls mode=0555 pkg.csize=12 pkg.size=40 elfarch=i386 pkg.content-hash=sha256-x")
	require.NoError(t, err)

	a.StripDerived()
	once := a.String()
	a.StripDerived()

	assert.Equal(t, once, a.String())
	assert.NotContains(t, a.Attrs, "pkg.csize")
	assert.NotContains(t, a.Attrs, "elfarch")
	assert.Equal(t, "0555", a.Attrs["mode"])
}

func TestStringCanonicalOrder(t *testing.T) {
	t.Parallel()

	a, err := actions.New("file", []string{"owner=root", "path=usr/bin/ls", "mode=0555"})
	require.NoError(t, err)
	a.Hash = "abc"

	assert.Equal(t, "file abc path=usr/bin/ls mode=0555 owner=root", a.String())
}

func TestStringQuotesSpacedValues(t *testing.T) {
	t.Parallel()

	a, err := actions.New("set", []string{"name=pkg.summary", "value=two words"})
	require.NoError(t, err)

	assert.Equal(t, `set name=pkg.summary value="two words"`, a.String())
}
