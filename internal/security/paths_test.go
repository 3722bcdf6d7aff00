package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCheckerUnrestricted(t *testing.T) {
	pc := NewPathChecker(nil)
	assert.False(t, pc.HasRestrictions())
	assert.NoError(t, pc.Check("/anywhere/at/all.py"))
}

func TestPathCheckerAllowsNestedMissingFiles(t *testing.T) {
	root := t.TempDir()
	pc := NewPathChecker([]string{root, "  "})
	require.True(t, pc.HasRestrictions())
	assert.Len(t, pc.AllowedPaths(), 1)

	assert.NoError(t, pc.Check(filepath.Join(root, "out", "dash.py")))
	assert.NoError(t, pc.Check(root))

	err := pc.Check(filepath.Join(filepath.Dir(root), "elsewhere.py"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathDenied))

	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Contains(t, denied.Path, "elsewhere.py")
}

func TestPathCheckerRejectsPrefixSibling(t *testing.T) {
	parent := t.TempDir()
	allowed := filepath.Join(parent, "work")
	require.NoError(t, os.Mkdir(allowed, 0755))

	pc := NewPathChecker([]string{allowed})
	assert.Error(t, pc.Check(filepath.Join(parent, "workshop", "x.py")))
}

func TestPathCheckerFollowsSymlinks(t *testing.T) {
	parent := t.TempDir()
	allowed := filepath.Join(parent, "allowed")
	outside := filepath.Join(parent, "outside")
	require.NoError(t, os.Mkdir(allowed, 0755))
	require.NoError(t, os.Mkdir(outside, 0755))
	link := filepath.Join(allowed, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	pc := NewPathChecker([]string{allowed})
	assert.Error(t, pc.Check(filepath.Join(link, "dash.py")))
}
