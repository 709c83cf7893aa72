package atlas

import (
	"image"
	"sync"

	"github.com/pkg/errors"
)

// Handle identifies a texture held by a TextureStore.
type Handle uint64

// TextureStore is where raw RGBA pixel buffers are uploaded. A game engine
// would back it with GPU textures; MemoryStore keeps them in memory.
type TextureStore interface {
	// Add uploads w x h pixels (4 bytes each, row major) and returns a handle.
	Add(pix []byte, w, h int) (Handle, error)
	// Image returns the texture behind h.
	Image(h Handle) (*image.RGBA, bool)
	// Release drops the texture behind h. Unknown handles are ignored.
	Release(h Handle)
}

// MemoryStore is a TextureStore backed by image.RGBA values. It is safe for
// concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	next     Handle
	textures map[Handle]*image.RGBA
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{textures: make(map[Handle]*image.RGBA)}
}

func (s *MemoryStore) Add(pix []byte, w, h int) (Handle, error) {
	if w <= 0 || h <= 0 {
		return 0, errors.Wrapf(ErrZeroSized, "texture size %dx%d", w, h)
	}
	if len(pix) != w*h*4 {
		return 0, errors.Errorf("texture %dx%d: got %d bytes, want %d", w, h, len(pix), w*h*4)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.textures[s.next] = img
	return s.next, nil
}

func (s *MemoryStore) Image(h Handle) (*image.RGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.textures[h]
	return img, ok
}

func (s *MemoryStore) Release(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.textures, h)
}

// Len returns the number of textures currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.textures)
}

// Pixels returns the tightly packed pixel buffer of img, as expected by
// TextureStore.Add.
func Pixels(img *image.RGBA) []byte {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		return img.Pix[:b.Dx()*b.Dy()*4]
	}
	pix := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		pix = append(pix, img.Pix[start:start+b.Dx()*4]...)
	}
	return pix
}
