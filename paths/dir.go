package paths

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Dir serves sprite files below a root directory. Names are slash separated
// and relative to the root.
type Dir string

// resolve maps a sprite name to a file path that cannot escape the root.
func (d Dir) resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "\x00") {
		return "", errors.Wrapf(os.ErrInvalid, "sprite name %q", name)
	}
	return filepath.Join(string(d), filepath.FromSlash(path.Clean("/"+name))), nil
}

// Open implements pipeline.Source.
func (d Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sprite %q", name)
	}
	return f, nil
}

// List returns the names of all sprite files below the root, sorted.
func (d Dir) List() ([]string, error) {
	var names []string
	err := filepath.Walk(string(d), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsSprite(p) {
			return nil
		}
		rel, err := filepath.Rel(string(d), p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing sprites in %s", string(d))
	}
	sort.Strings(names)
	return names, nil
}
