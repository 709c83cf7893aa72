package pipeline

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Source opens sprite files by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// MemorySource is a Source holding files in memory. It is safe for
// concurrent use.
type MemorySource struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemorySource() *MemorySource {
	return &MemorySource{files: make(map[string][]byte)}
}

// Set stores b under name, replacing any earlier content.
func (s *MemorySource) Set(name string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = b
}

func (s *MemorySource) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

func (s *MemorySource) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *MemorySource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	b, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(os.ErrNotExist, "sprite %q", name)
	}
	return ioutil.NopCloser(bytes.NewReader(b)), nil
}
