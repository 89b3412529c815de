// Package asset decodes wallpaper images and keeps them in a bounded,
// process-wide cache shared by every output.
package asset

import (
	"bufio"
	"bytes"
	"container/list"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
	"golang.org/x/sync/singleflight"

	"github.com/jmylchreest/wlrs/internal/model"
)

// DefaultCapacity is the number of decoded images kept when none is set.
const DefaultCapacity = 32

// Decoder turns a file path into an image.
type Decoder func(path string) (image.Image, error)

// DecodeFile opens and decodes an image with the registered decoders.
// Animated GIFs decode to an *Animation.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	if magic, _ := br.Peek(4); bytes.Equal(magic, []byte("GIF8")) {
		img, err := decodeGIF(br)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

type entry struct {
	path string
	img  image.Image
}

// Cache is an LRU of decoded images. Concurrent requests for the same path
// share a single decode. Decoded images are treated as read-only.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently used
	index    map[string]*list.Element // path -> element holding *entry

	group  singleflight.Group
	decode Decoder
	logger *slog.Logger
}

// NewCache creates a cache holding up to capacity images.
func NewCache(capacity int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		decode:   DecodeFile,
		logger:   logger,
	}
}

// SetDecoder replaces the decode function. Used by tests.
func (c *Cache) SetDecoder(d Decoder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decode = d
}

// Image returns the decoded image at path, decoding it on first use.
// Failures are returned as *model.AssetError and are not cached.
func (c *Cache) Image(path string) (image.Image, error) {
	if img, ok := c.lookup(path); ok {
		return img, nil
	}

	c.mu.Lock()
	decode := c.decode
	c.mu.Unlock()

	v, err, _ := c.group.Do(path, func() (any, error) {
		if img, ok := c.lookup(path); ok {
			return img, nil
		}
		img, err := decode(path)
		if err != nil {
			return nil, err
		}
		c.store(path, img)
		c.logger.Debug("decoded asset", "path", path, "bounds", img.Bounds().String())
		return img, nil
	})
	if err != nil {
		return nil, &model.AssetError{Path: path, Err: err}
	}
	return v.(image.Image), nil
}

// Invalidate drops path from the cache, e.g. after the file changed.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[path]; ok {
		c.order.Remove(el)
		delete(c.index, path)
	}
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) lookup(path string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[path]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).img, true
}

func (c *Cache) store(path string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[path]; ok {
		el.Value.(*entry).img = img
		c.order.MoveToFront(el)
		return
	}
	c.index[path] = c.order.PushFront(&entry{path: path, img: img})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).path)
	}
}
