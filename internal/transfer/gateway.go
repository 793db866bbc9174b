package transfer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

// Gateway owns blob storage. It accepts uploads, serves downloads and releases
// blobs once the history entries referencing them are cleared.
type Gateway struct {
	log           *slog.Logger
	index         *Index
	disk          *DiskStore
	maxUploadSize int64
	removals      sync.WaitGroup

	mu       sync.Mutex
	released map[string]struct{}
}

func NewGateway(log *slog.Logger, index *Index, disk *DiskStore, maxUploadSize int64) *Gateway {
	return &Gateway{
		log:           log,
		index:         index,
		disk:          disk,
		maxUploadSize: maxUploadSize,
		released:      make(map[string]struct{}),
	}
}

// MaxUploadSize returns the largest accepted upload in bytes.
func (g *Gateway) MaxUploadSize() int64 {
	return g.maxUploadSize
}

// Accept streams r to storage under a fresh blob id and returns its record once
// the bytes are fully written. On any failure, including ctx cancellation when
// the uploader goes away, the partial file is removed and nothing is indexed.
func (g *Gateway) Accept(ctx context.Context, r io.Reader, filename string, declaredSize int64) (Blob, error) {
	if declaredSize > g.maxUploadSize {
		return Blob{}, fmt.Errorf("%w: declared %d bytes, limit is %d", ErrTooLarge, declaredSize, g.maxUploadSize)
	}

	partial, err := g.disk.CreateTemp()
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = partial.Close()
			_ = os.Remove(partial.Name())
		}
	}()

	br := bufio.NewReaderSize(&contextReader{ctx: ctx, r: r}, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	mimeType := mimetype.Detect(head).String()

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(partial, hash), io.LimitReader(br, g.maxUploadSize+1))
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if written > g.maxUploadSize {
		return Blob{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, g.maxUploadSize)
	}
	if declaredSize > 0 && declaredSize != written {
		g.log.Warn("Upload size differs from declared size", "declared", declaredSize, "written", written)
	}
	if err = partial.Close(); err != nil {
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	id := uuid.NewString()
	if err = g.disk.Commit(partial.Name(), id); err != nil {
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	committed = true

	clean := SanitizeFilename(filename)
	blob := Blob{
		ID:        id,
		Filename:  clean,
		Size:      written,
		MimeType:  mimeType,
		Category:  Category(clean, mimeType),
		SHA256:    hex.EncodeToString(hash.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}
	if err = g.index.Put(blob); err != nil {
		_ = g.disk.Remove(id)
		return Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	g.log.Info("Blob stored", "blob", id, "filename", clean, "size", written, "mime", mimeType)
	return blob, nil
}

// Fetch opens a stored blob. Unknown, malformed and released ids all yield
// ErrNotFound.
func (g *Gateway) Fetch(id string) (io.ReadSeekCloser, Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, Blob{}, ErrNotFound
	}
	if g.isReleased(id) {
		return nil, Blob{}, ErrNotFound
	}
	blob, err := g.index.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Blob{}, err
		}
		return nil, Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	f, err := g.disk.Open(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Blob{}, err
		}
		return nil, Blob{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return f, blob, nil
}

// Release makes the given blobs unreachable immediately and deletes their
// records and bytes in the background. It does no I/O, so it is safe to call
// from the hub loop.
func (g *Gateway) Release(ids ...string) {
	if len(ids) == 0 {
		return
	}
	g.mu.Lock()
	for _, id := range ids {
		g.released[id] = struct{}{}
	}
	g.mu.Unlock()

	g.removals.Add(1)
	go func() {
		defer g.removals.Done()
		if err := g.index.Delete(ids...); err != nil {
			g.log.Error("Failed to drop blob records", "count", len(ids), "err", err)
		}
		for _, id := range ids {
			if err := g.disk.Remove(id); err != nil {
				g.log.Warn("Failed to remove blob file", "blob", id, "err", err)
			}
		}

		g.mu.Lock()
		for _, id := range ids {
			delete(g.released, id)
		}
		g.mu.Unlock()
		g.log.Info("Blobs released", "count", len(ids))
	}()
}

func (g *Gateway) isReleased(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.released[id]
	return ok
}

// Discard drops a stored blob that never made it into the history.
func (g *Gateway) Discard(id string) {
	if err := g.index.Delete(id); err != nil {
		g.log.Error("Failed to drop blob record", "blob", id, "err", err)
	}
	if err := g.disk.Remove(id); err != nil {
		g.log.Warn("Failed to remove blob file", "blob", id, "err", err)
	}
}

// Close waits for pending removals and deletes every remaining blob: storage
// lives as long as the process.
func (g *Gateway) Close() error {
	g.removals.Wait()

	ids, err := g.index.IDs()
	if err != nil {
		return fmt.Errorf("listing blobs: %w", err)
	}
	for _, id := range ids {
		if err := g.disk.Remove(id); err != nil {
			g.log.Warn("Failed to remove blob file", "blob", id, "err", err)
		}
	}
	return g.index.Delete(ids...)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
