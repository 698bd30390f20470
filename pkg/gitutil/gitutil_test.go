//go:build !integration

package gitutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ci-shared/workflow-secrets/pkg/testutil"
	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRepoRootFromSubdirectory(t *testing.T) {
	dir := testutil.TempDir(t, "repo-*")
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	nested := filepath.Join(dir, ".github", "workflows")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindRepoRoot(nested)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRootOrDirFallsBackOutsideRepository(t *testing.T) {
	dir := testutil.TempDir(t, "norepo-*")

	// The temp tree lives outside any repository on CI runners; if it does
	// not, the fallback path cannot be observed.
	if _, err := FindRepoRoot(dir); err == nil {
		t.Skip("temp directory is inside a git repository")
	}
	assert.Equal(t, dir, RootOrDir(dir))
}
