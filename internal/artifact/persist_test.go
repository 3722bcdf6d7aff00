package artifact

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayz/dashgen/internal/security"
)

func TestPersistWritesAndOverwrites(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "videogame_dashboard.py")
	p := NewPersister(nil, false)

	res, err := p.Persist(&Artifact{Code: "import dash\n# first\n"}, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, res.Path)
	assert.Equal(t, len("import dash\n# first\n"), res.Bytes)

	_, err = p.Persist(&Artifact{Code: "import dash\n"}, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "import dash\n", string(data), "existing file is replaced")

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0644), info.Mode().Perm())
}

func failingWrite(w io.Writer, s string) (int, error) {
	n, _ := io.WriteString(w, s[:len(s)/2])
	return n, errors.New("no space left on device")
}

func TestPersistFailedWriteKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dash.py")
	require.NoError(t, os.WriteFile(dest, []byte("import dash\n# previous run\n"), 0644))

	p := NewPersister(nil, false)
	p.write = failingWrite
	_, err := p.Persist(&Artifact{Code: "import dash\napp = dash.Dash(__name__)\n"}, dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersist))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "import dash\n# previous run\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is removed")
}

func TestPersistFailedWriteCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dash.py")

	for _, noClobber := range []bool{false, true} {
		p := NewPersister(nil, noClobber)
		p.write = failingWrite
		_, err := p.Persist(&Artifact{Code: "import dash\n"}, dest)
		require.Error(t, err)
		assert.NoFileExists(t, dest)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestPersistCreatesParentDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "nested", "dash.py")
	_, err := NewPersister(nil, false).Persist(&Artifact{Code: "import dash\n"}, dest)
	require.NoError(t, err)
	assert.FileExists(t, dest)
}

func TestPersistNoClobber(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dash.py")
	require.NoError(t, os.WriteFile(dest, []byte("keep me"), 0644))

	_, err := NewPersister(nil, true).Persist(&Artifact{Code: "import dash\n"}, dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersist))
	assert.True(t, errors.Is(err, fs.ErrExist))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))

	fresh := filepath.Join(filepath.Dir(dest), "fresh.py")
	_, err = NewPersister(nil, true).Persist(&Artifact{Code: "import dash\n"}, fresh)
	require.NoError(t, err)
	data, err = os.ReadFile(fresh)
	require.NoError(t, err)
	assert.Equal(t, "import dash\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary file left behind")
}

func TestPersistUnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	// A directory in the way of the file.
	dest := filepath.Join(dir, "dash.py")
	require.NoError(t, os.Mkdir(dest, 0755))

	_, err := NewPersister(nil, false).Persist(&Artifact{Code: "import dash\n"}, dest)
	require.Error(t, err)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, dest, pe.Path)
	assert.NotNil(t, pe.Err)
}

func TestPersistRespectsAllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	p := NewPersister(security.NewPathChecker([]string{allowed}), false)

	_, err := p.Persist(&Artifact{Code: "import dash\n"}, filepath.Join(other, "dash.py"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, security.ErrPathDenied))
	assert.NoFileExists(t, filepath.Join(other, "dash.py"))

	_, err = p.Persist(&Artifact{Code: "import dash\n"}, filepath.Join(allowed, "dash.py"))
	assert.NoError(t, err)
}
