package bundle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgpress.run/internal/bundle"
)

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestMakeFSBundle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "usr/bin/frob", "#!/bin/sh\n")
	require.NoError(t, os.Symlink("frob", filepath.Join(root, "usr/bin/frobnicate")))

	b, err := bundle.Make(root, bundle.Options{DefaultOwner: true})
	require.NoError(t, err)

	assert.Empty(t, b.Identity())
	assert.Empty(t, b.Scripts())

	var names, paths []string
	for _, a := range b.Actions() {
		names = append(names, a.Name)
		paths = append(paths, a.Attrs["path"])
	}
	assert.Equal(t, []string{"dir", "dir", "file", "link"}, names)
	assert.Equal(t, []string{"usr", "usr/bin", "usr/bin/frob", "usr/bin/frobnicate"}, paths)

	file := b.Actions()[2]
	assert.Equal(t, "root", file.Attrs["owner"])
	assert.Equal(t, "bin", file.Attrs["group"])
	assert.Regexp(t, `^\d{8}T\d{6}Z$`, file.Attrs["timestamp"])

	for _, a := range b.Actions()[:2] {
		assert.NotContains(t, a.Attrs, "timestamp", "action %s", a)
	}

	link := b.Actions()[3]
	assert.Equal(t, "frob", link.Attrs["target"])
	assert.NotContains(t, link.Attrs, "owner")
}

func TestMakeFSBundleNoDefaultOwner(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "etc/frob.conf", "x=1\n")

	b, err := bundle.Make(root, bundle.Options{})
	require.NoError(t, err)

	for _, a := range b.Actions() {
		assert.NotContains(t, a.Attrs, "owner", "action %s", a)
	}
}

func TestFSBundlePayload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "usr/bin/frob", "payload bytes")

	b, err := bundle.Make(root, bundle.Options{})
	require.NoError(t, err)

	p, ok := b.Payload("usr/bin/frob")
	require.True(t, ok)
	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload bytes")), size)

	_, ok = b.Payload("usr/bin/missing")
	assert.False(t, ok)
	_, ok = b.Payload("usr/bin")
	assert.False(t, ok, "directories are not payloads")
}

func TestMakeRejectsNonDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "plain", "x")

	var invalidErr *bundle.InvalidBundleError
	_, err := bundle.Make(filepath.Join(root, "plain"), bundle.Options{})
	require.ErrorAs(t, err, &invalidErr)

	_, err = bundle.Make(filepath.Join(root, "absent"), bundle.Options{})
	require.ErrorAs(t, err, &invalidErr)
}

func writeSVR4(t *testing.T, root, pkg string, pkgmapEntries string) string {
	t.Helper()
	dir := filepath.Join(root, pkg)
	writeFile(t, root, pkg+"/pkginfo",
		"PKG="+pkg+"\nNAME=\"Frobnication utilities\"\nDESC=tools that frob\nARCH=i386\n")
	writeFile(t, root, pkg+"/pkgmap", ": 1 100\n"+pkgmapEntries)
	return dir
}

func TestMakeSVR4Bundle(t *testing.T) {
	t.Parallel()

	dir := writeSVR4(t, t.TempDir(), "SUNWfrob",
		"1 d none usr/bin 0755 root bin\n"+
			"1 f none usr/bin/frob 0555 root bin 120 20100 1234\n"+
			"1 s none usr/bin/frobnicate=frob\n"+
			"1 l none usr/bin/frobln=/usr/bin/frob\n"+
			"1 i checkinstall 200 10000 1234\n"+
			"1 i pkginfo 100 5000 1234\n")
	writeFile(t, dir, "reloc/usr/bin/frob", "#!/bin/sh\n")

	b, err := bundle.Make(dir, bundle.Options{DefaultOwner: true})
	require.NoError(t, err)

	assert.Equal(t, "SUNWfrob", b.Identity())
	assert.Equal(t, []string{"checkinstall"}, b.Scripts())

	var names []string
	for _, a := range b.Actions() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"set", "set", "dir", "file", "link", "hardlink"}, names)

	summary := b.Actions()[0]
	assert.Equal(t, "pkg.summary", summary.Attrs["name"])
	assert.Equal(t, "Frobnication utilities", summary.Attrs["value"])

	// The pkgmap modtime field (1234 seconds into the epoch) becomes
	// the file timestamp.
	file := b.Actions()[3]
	assert.Equal(t, "19700101T002034Z", file.Attrs["timestamp"])
	assert.NotContains(t, b.Actions()[2].Attrs, "timestamp")

	p, ok := b.Payload("usr/bin/frob")
	require.True(t, ok)
	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestSVR4BundleClasses(t *testing.T) {
	t.Parallel()

	dir := writeSVR4(t, t.TempDir(), "SUNWfrob",
		"1 e preserve etc/frob.conf 0644 root sys 10 100 1234\n")

	b, err := bundle.Make(dir, bundle.Options{})
	require.NoError(t, err)

	class, ok := b.ClassForPath("etc/frob.conf")
	require.True(t, ok)
	assert.Equal(t, "preserve", class)

	_, ok = b.ClassForPath("usr/nonexistent")
	assert.False(t, ok)
}

func TestSVR4BundleTargetPathsDeliverHardlinksAsFiles(t *testing.T) {
	t.Parallel()

	dir := writeSVR4(t, t.TempDir(), "SUNWfrob",
		"1 f none usr/bin/frob 0555 root bin 120 20100 1234\n"+
			"1 l none usr/bin/frobln=/usr/bin/frob\n")
	writeFile(t, dir, "reloc/usr/bin/frob", "shared bytes")

	b, err := bundle.Make(dir, bundle.Options{TargetPaths: []string{"usr/bin/frobln"}})
	require.NoError(t, err)

	for _, a := range b.Actions() {
		require.NotEqual(t, "hardlink", a.Name)
	}

	p, ok := b.Payload("usr/bin/frobln")
	require.True(t, ok)
	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len("shared bytes")), size)
}

func TestSVR4BundleInstallScripts(t *testing.T) {
	t.Parallel()

	dir := writeSVR4(t, t.TempDir(), "SUNWfrob",
		"1 f none usr/bin/frob 0555 root bin 120 20100 1234\n")
	writeFile(t, dir, "install/postinstall", "#!/bin/sh\n")
	writeFile(t, dir, "install/copyright", "(c)\n")

	b, err := bundle.Make(dir, bundle.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"postinstall"}, b.Scripts())
}
