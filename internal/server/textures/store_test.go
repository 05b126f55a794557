package textures

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 255})

	c := NewCache(NewMemoryStore(), "http://localhost:8080/")
	tex, err := c.Decode(bytes.NewReader(encodePNG(t, img)))
	require.NoError(t, err)

	assert.Equal(t, ComputeHash(img), tex.Hash)

	decoded, err := png.Decode(bytes.NewReader(tex.Data))
	require.NoError(t, err)
	assert.Equal(t, tex.Hash, ComputeHash(decoded))
}

func TestDecode_Garbage(t *testing.T) {
	c := NewCache(NewMemoryStore(), "")
	_, err := c.Decode(bytes.NewReader([]byte("definitely not a png")))
	assert.ErrorIs(t, err, common.ErrMalformedImage)
}

func TestURL(t *testing.T) {
	c := NewCache(NewMemoryStore(), "https://ygg.example/")
	assert.Equal(t, "https://ygg.example/textures/"+sampleHash, c.URL(sampleHash))
}

func TestStoreIfAbsent_Idempotent(t *testing.T) {
	mem := NewMemoryStore()
	var stored []string
	c := NewCache(mem, "", WithOnStored(func(h string) { stored = append(stored, h) }))
	ctx := context.Background()

	require.NoError(t, c.StoreIfAbsent(ctx, sampleHash, []byte("one")))
	require.NoError(t, c.StoreIfAbsent(ctx, sampleHash, []byte("two")))

	assert.Equal(t, int64(1), mem.Writes())
	assert.Equal(t, []string{sampleHash}, stored)

	b, ok, err := c.Load(ctx, sampleHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("one"), b)
}

func TestStoreIfAbsent_ConcurrentSingleWrite(t *testing.T) {
	mem := NewMemoryStore()
	c := NewCache(mem, "")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := c.StoreIfAbsent(context.Background(), sampleHash, []byte("png")); err != nil {
				t.Errorf("StoreIfAbsent: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), mem.Writes())
}

func TestStoreIfAbsent_InvalidHash(t *testing.T) {
	c := NewCache(NewMemoryStore(), "")
	err := c.StoreIfAbsent(context.Background(), "../../x", []byte("png"))
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

type failingStore struct {
	MemoryStore
	puts atomic.Int32
}

func (f *failingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (f *failingStore) Put(context.Context, string, []byte) (bool, error) {
	f.puts.Add(1)
	return false, errors.New("disk full")
}

func TestStoreIfAbsent_BackendErrorIsUploadFailed(t *testing.T) {
	c := NewCache(&failingStore{}, "")
	err := c.StoreIfAbsent(context.Background(), sampleHash, []byte("png"))
	assert.ErrorIs(t, err, common.ErrUploadFailed)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLoad_MissingAndInvalid(t *testing.T) {
	c := NewCache(NewMemoryStore(), "")

	_, ok, err := c.Load(context.Background(), sampleHash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndToEnd_VisuallyEqualUploadsShareOneBlob(t *testing.T) {
	mem := NewMemoryStore()
	c := NewCache(mem, "http://h")
	ctx := context.Background()

	a := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	b := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	a.SetNRGBA(0, 0, color.NRGBA{R: 9, G: 9, B: 9, A: 0})
	b.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 1, B: 50, A: 0})

	ta, err := c.Decode(bytes.NewReader(encodePNG(t, a)))
	require.NoError(t, err)
	tb, err := c.Decode(bytes.NewReader(encodePNG(t, b)))
	require.NoError(t, err)
	require.Equal(t, ta.Hash, tb.Hash)

	require.NoError(t, c.StoreIfAbsent(ctx, ta.Hash, ta.Data))
	require.NoError(t, c.StoreIfAbsent(ctx, tb.Hash, tb.Data))

	assert.Equal(t, int64(1), mem.Writes())
	assert.Equal(t, c.URL(ta.Hash), c.URL(tb.Hash))
}
