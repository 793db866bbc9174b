package server

import (
	"context"
	"io"

	"github.com/Tyrowin/lanshare/internal/transfer"
)

//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../mocks/mock_ports.go -package=mocks

// BlobReleaser frees the storage behind blobs no longer referenced by history.
type BlobReleaser interface {
	Release(ids ...string)
}

// FileStore streams uploads to storage and serves them back.
type FileStore interface {
	BlobReleaser
	Accept(ctx context.Context, r io.Reader, filename string, declaredSize int64) (transfer.Blob, error)
	Fetch(id string) (io.ReadSeekCloser, transfer.Blob, error)
	Discard(id string)
	MaxUploadSize() int64
}
