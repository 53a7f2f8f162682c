package bundle_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgpress.run/internal/bundle"
)

func TestValidatorNoIdentityIsNoOp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "tree/usr/bin/frob", "x")
	b, err := bundle.Make(filepath.Join(root, "tree"), bundle.Options{})
	require.NoError(t, err)

	v := bundle.NewValidator()
	v.Visit(b)
	v.Visit(b)

	assert.Empty(t, v.Warnings())
	assert.Empty(t, v.Errors())
}

func TestValidatorAccumulatesAcrossBundles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := writeSVR4(t, root, "SUNWone",
		"1 f none usr/bin/one 0555 root bin 10 100 1\n")
	second := writeSVR4(t, root, "SUNWtwo",
		"1 e config etc/two.conf 0644 root sys 10 100 1\n")
	writeFile(t, second, "install/preinstall", "#!/bin/sh\n")

	b1, err := bundle.Make(first, bundle.Options{})
	require.NoError(t, err)
	b2, err := bundle.Make(second, bundle.Options{})
	require.NoError(t, err)

	v := bundle.NewValidator()
	v.Visit(b1)
	v.Visit(b2)

	warnings := v.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Several SVR4 packages detected")

	errs := v.Errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], `etc/two.conf belongs to "config" class`)
	assert.Contains(t, errs[1], "script present in SUNWtwo: preinstall")
}

func TestValidatorDeduplicatesWarning(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	paths := []string{
		writeSVR4(t, root, "SUNWone", "1 f none usr/bin/one 0555 root bin 10 100 1\n"),
		writeSVR4(t, root, "SUNWtwo", "1 f none usr/bin/two 0555 root bin 10 100 1\n"),
		writeSVR4(t, root, "SUNWsix", "1 f none usr/bin/six 0555 root bin 10 100 1\n"),
	}

	v := bundle.NewValidator()
	for _, p := range paths {
		b, err := bundle.Make(p, bundle.Options{})
		require.NoError(t, err)
		v.Visit(b)
	}

	assert.Len(t, v.Warnings(), 1)
	assert.Empty(t, v.Errors())
}

func TestValidatorKnownClassesAreSafe(t *testing.T) {
	t.Parallel()

	dir := writeSVR4(t, t.TempDir(), "SUNWfrob",
		"1 f manifest usr/lib/frob.xml 0444 root bin 10 100 1\n")

	b, err := bundle.Make(dir, bundle.Options{})
	require.NoError(t, err)

	v := bundle.NewValidator()
	v.Visit(b)

	assert.Empty(t, v.Errors())
}
