// Package textures stores skin, cape and elytra images by content. A
// texture's identity is the hash of its decoded pixels, so visually equal
// uploads share one blob and one URL.
package textures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"golang.org/x/sync/singleflight"

	_ "image/gif"
	_ "image/jpeg"
)

// maxImageBytes bounds what Decode reads from an upload.
const maxImageBytes = 1 << 20

// BlobStore is the byte-level backend. Put must not overwrite an existing
// blob; it reports whether this call wrote it.
type BlobStore interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Put(ctx context.Context, hash string, data []byte) (bool, error)
	Get(ctx context.Context, hash string) ([]byte, bool, error)
}

// Option customizes a Cache created by NewCache.
type Option func(*Cache)

// WithOnStored registers a hook run after a blob was actually written.
func WithOnStored(f func(hash string)) Option {
	return func(c *Cache) { c.onStored = f }
}

// WithLogger sets the logger for store failures. The default discards.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache is the content-addressed texture store.
type Cache struct {
	blobs    BlobStore
	rootURL  string
	group    singleflight.Group
	onStored func(string)
	logger   logging.Logger
}

// NewCache creates the texture store on top of a blob backend.
//
// Parameters:
//   - blobs: backend holding PNG bytes keyed by texture hash
//   - rootURL: public base URL; texture URLs are rootURL + "/textures/" + hash
//   - opts: optional hooks and logger
//
// Returns:
//   - *Cache: ready for concurrent use
func NewCache(blobs BlobStore, rootURL string, opts ...Option) *Cache {
	c := &Cache{
		blobs:   blobs,
		rootURL: strings.TrimRight(rootURL, "/"),
		logger:  logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Decode reads an image, computes its hash and re-encodes it as PNG.
// Anything that is not a decodable image yields common.ErrMalformedImage.
func (c *Cache) Decode(r io.Reader) (*models.Texture, error) {
	img, _, err := image.Decode(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedImage, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedImage, err)
	}

	return &models.Texture{Hash: ComputeHash(img), Data: buf.Bytes()}, nil
}

// StoreIfAbsent persists data under hash unless it is already there.
// Concurrent calls for one hash share a single backend round trip.
func (c *Cache) StoreIfAbsent(ctx context.Context, hash string, data []byte) error {
	if !ValidHash(hash) {
		return fmt.Errorf("%w: texture hash %q", common.ErrInvalidArgument, hash)
	}

	_, err, _ := c.group.Do(hash, func() (any, error) {
		exists, err := c.blobs.Exists(ctx, hash)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}

		written, err := c.blobs.Put(ctx, hash, data)
		if err != nil {
			return nil, err
		}
		if written {
			c.logger.Info(ctx, "texture stored", "hash", hash, "bytes", len(data))
			if c.onStored != nil {
				c.onStored(hash)
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Join(common.ErrUploadFailed, err)
	}
	return nil
}

// Load returns the blob stored under hash.
func (c *Cache) Load(ctx context.Context, hash string) ([]byte, bool, error) {
	if !ValidHash(hash) {
		return nil, false, nil
	}
	return c.blobs.Get(ctx, hash)
}

// URL is the public location of the texture with the given hash.
func (c *Cache) URL(hash string) string {
	return c.rootURL + "/textures/" + hash
}
