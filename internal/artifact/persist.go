package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kayz/dashgen/internal/security"
)

var ErrPersist = errors.New("could not write generated script")

// PersistenceError wraps the OS-level cause of a failed write.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v to %s: %v", ErrPersist, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}

// Result describes a completed write.
type Result struct {
	Path  string
	Bytes int
}

// Persister writes artifacts to disk, once, without retrying.
type Persister struct {
	paths     *security.PathChecker
	noClobber bool
	write     func(w io.Writer, s string) (int, error)
}

func NewPersister(paths *security.PathChecker, noClobber bool) *Persister {
	return &Persister{paths: paths, noClobber: noClobber, write: io.WriteString}
}

// Persist writes a.Code as UTF-8 to dest. The code goes to a temporary file
// in the same directory first and only replaces dest once it is complete, so
// a failed write never leaves an empty or partial script behind. With
// no-clobber an existing dest is never replaced.
func (p *Persister) Persist(a *Artifact, dest string) (res *Result, err error) {
	if a == nil {
		return nil, &PersistenceError{Path: dest, Err: errors.New("nothing to write")}
	}
	if err := p.paths.Check(dest); err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}
	dir := filepath.Dir(dest)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &PersistenceError{Path: dest, Err: err}
		}
	}
	if p.noClobber {
		if _, err := os.Lstat(dest); err == nil {
			return nil, &PersistenceError{Path: dest, Err: &fs.PathError{Op: "create", Path: dest, Err: fs.ErrExist}}
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := p.write(tmp, a.Code)
	if err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}
	if err = tmp.Chmod(0644); err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}

	if p.noClobber {
		// link fails with EEXIST if dest appeared after the check above
		if err = os.Link(tmpPath, dest); err != nil {
			return nil, &PersistenceError{Path: dest, Err: err}
		}
		_ = os.Remove(tmpPath)
	} else if err = os.Rename(tmpPath, dest); err != nil {
		return nil, &PersistenceError{Path: dest, Err: err}
	}
	return &Result{Path: dest, Bytes: n}, nil
}
