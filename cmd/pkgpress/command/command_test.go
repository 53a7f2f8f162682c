package command_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgpress.run/cmd/pkgpress/command"
)

func run(t *testing.T, env map[string]string, stdin string, args ...string) (int, string, string) {
	t.Helper()

	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	code := command.Run(context.Background(), lookup, strings.NewReader(stdin), out, errOut, args)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPublishCycle(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, errOut := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)

	payloads := t.TempDir()
	writeFile(t, filepath.Join(payloads, "usr/bin/hello"), "#!/bin/sh\necho hello\n")

	mpath := filepath.Join(t.TempDir(), "hello.p5m")
	writeFile(t, mpath, strings.Join([]string{
		"set name=pkg.fmri value=pkg://test/hello@1.0,5.11-0",
		"dir path=usr/bin mode=0755 owner=root group=bin",
		"file usr/bin/hello path=usr/bin/hello mode=0555 owner=root group=bin elfhash=deadbeef pkg.csize=999 pkg.size=999",
	}, "\n")+"\n")

	code, out, errOut := run(t, nil, "", "publish", "-s", repo, "-d", payloads, mpath)
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)
	assert.Contains(t, out, "PUBLISHED")
	assert.Contains(t, out, "pkg://test/hello@1.0,5.11-0:")

	versions, err := os.ReadDir(filepath.Join(repo, "pkg", "hello"))
	require.NoError(t, err)
	require.Len(t, versions, 1)

	published, err := os.ReadFile(filepath.Join(repo, "pkg", "hello", versions[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(published), "elfhash")
	assert.NotContains(t, string(published), "=999")
	assert.Contains(t, string(published), "pkg.size=")

	catalog, err := os.ReadFile(filepath.Join(repo, "catalog.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(catalog), "hello")
}

func TestPublishRequiresVersion(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, _ := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code)

	manifest := "set name=pkg.fmri value=pkg://test/hello\n"
	code, _, errOut := run(t, nil, manifest, "publish", "-s", repo)
	assert.Equal(t, command.ReturnCodeError, code, errOut)

	// No transaction may be left staged behind the failure.
	staged, err := os.ReadDir(filepath.Join(repo, "trans"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestOpenAddClose(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, _ := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code)

	env := map[string]string{"PKG_REPO": repo}

	code, out, errOut := run(t, env, "", "open", "-e", "hello@1.0,5.11-0")
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)
	assert.True(t, strings.HasPrefix(out, "export PKG_TRANS_ID="))

	code, out, _ = run(t, env, "", "open", "-n", "hello@1.0,5.11-0")
	require.Equal(t, command.ReturnCodeSuccess, code)
	env["PKG_TRANS_ID"] = strings.TrimSpace(out)

	code, _, errOut = run(t, env, "", "add", "set", "name=pkg.summary", "value=demo package")
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)

	code, out, errOut = run(t, env, "", "close")
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "PUBLISHED", lines[0])
	assert.Contains(t, lines[1], "hello@1.0,5.11-0:")
}

func TestIncludePartial(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, _ := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code)

	env := map[string]string{"PKG_REPO": repo}
	code, out, _ := run(t, env, "", "open", "-n", "hello@1.0,5.11-0")
	require.Equal(t, command.ReturnCodeSuccess, code)
	env["PKG_TRANS_ID"] = strings.TrimSpace(out)

	manifest := "unknown path=mystery\nset name=info.maintainer value=someone\n"
	code, _, errOut := run(t, env, manifest, "include")
	assert.Equal(t, command.ReturnCodePartial, code)
	assert.Contains(t, errOut, "invalid action for publication")

	code, _, _ = run(t, env, "", "close", "-A")
	assert.Equal(t, command.ReturnCodeSuccess, code)
}

func writeSVR4(t *testing.T, root, pkg, pkgmapEntries string) string {
	t.Helper()

	dir := filepath.Join(root, pkg)
	writeFile(t, filepath.Join(dir, "pkginfo"), "PKG="+pkg+"\nNAME=test package\n")
	writeFile(t, filepath.Join(dir, "pkgmap"), pkgmapEntries)
	return dir
}

func TestImportAbandonsOnFindings(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, _ := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code)

	env := map[string]string{"PKG_REPO": repo}
	code, out, _ := run(t, env, "", "open", "-n", "hello@1.0,5.11-0")
	require.Equal(t, command.ReturnCodeSuccess, code)
	env["PKG_TRANS_ID"] = strings.TrimSpace(out)

	bundles := t.TempDir()
	first := writeSVR4(t, bundles, "SUNWone",
		"1 f none usr/bin/one 0555 root bin 10 100 1\n")
	writeFile(t, filepath.Join(first, "reloc/usr/bin/one"), "one")
	second := writeSVR4(t, bundles, "SUNWtwo",
		"1 e config etc/two.conf 0644 root sys 10 100 1\n")
	writeFile(t, filepath.Join(second, "reloc/etc/two.conf"), "two")

	code, _, errOut := run(t, env, "", "import", first, second)
	assert.Equal(t, command.ReturnCodeError, code)
	assert.Contains(t, errOut, "Several SVR4 packages detected")
	assert.Contains(t, errOut, `belongs to "config" class`)

	// The abandoned transaction leaves nothing staged.
	staged, err := os.ReadDir(filepath.Join(repo, "trans"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "bin/tool"), "binary bits")

	code, out, errOut := run(t, nil, "", "generate", tree)
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)
	assert.Contains(t, out, "dir ")
	assert.Contains(t, out, "path=bin")
	assert.Contains(t, out, "file bin/tool ")
	assert.Contains(t, out, "owner=root")
	assert.NotContains(t, out, "timestamp=")
}

func TestGenerateTimestampPattern(t *testing.T) {
	t.Parallel()

	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "bin/tool"), "binary bits")
	writeFile(t, filepath.Join(tree, "etc/tool.conf"), "x=1\n")

	code, out, errOut := run(t, nil, "", "generate", "-T", "*.conf", tree)
	require.Equal(t, command.ReturnCodeSuccess, code, errOut)

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, "tool.conf") {
			assert.Regexp(t, `timestamp=\d{8}T\d{6}Z`, line)
		} else {
			assert.NotContains(t, line, "timestamp=")
		}
	}
}

func TestAddWithoutTransaction(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(t.TempDir(), "repo")
	code, _, _ := run(t, nil, "", "create-repository", "-s", repo)
	require.Equal(t, command.ReturnCodeSuccess, code)

	env := map[string]string{"PKG_REPO": repo}
	code, _, _ = run(t, env, "", "add", "set", "name=pkg.summary", "value=x")
	assert.Equal(t, command.ReturnCodeBadOptions, code)
}

func TestBadOption(t *testing.T) {
	t.Parallel()

	code, _, _ := run(t, nil, "", "open", "--bogus")
	assert.Equal(t, command.ReturnCodeBadOptions, code)

	code, _, _ = run(t, nil, "", "open")
	assert.Equal(t, command.ReturnCodeBadOptions, code)
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	code, _, _ := run(t, nil, "", "chicken")
	assert.Equal(t, command.ReturnCodeBadOptions, code)

	code, _, _ = run(t, nil, "")
	assert.Equal(t, command.ReturnCodeBadOptions, code)
}
