package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/lanshare/internal/mocks"
	"github.com/Tyrowin/lanshare/internal/transfer"
	"github.com/go-chi/chi/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newUploadRequest(t *testing.T, connectionID string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField(connectionIDField, connectionID))
	part, err := writer.CreateFormFile(fileField, "report.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func TestUpload_StorageFailureIsServerError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStore(ctrl)
	hub := newTestHub(t, files, 0)
	client := connectTestClient(t, hub, 16)
	handlers := NewHandlers(hub, files, NewConfig(), logs.GetLoggerFromString("ERROR"))

	files.EXPECT().MaxUploadSize().Return(int64(transfer.MB)).AnyTimes()
	files.EXPECT().
		Accept(gomock.Any(), gomock.Any(), "report.pdf", int64(0)).
		Return(transfer.Blob{}, fmt.Errorf("%w: disk full", transfer.ErrStorage))

	rec := httptest.NewRecorder()
	handlers.Upload(rec, newUploadRequest(t, client.ID(), []byte("%PDF-1.4")))

	req.Equal(http.StatusInternalServerError, rec.Code)
	req.Zero(hub.Room().History.Len())
}

// TestUpload_DiscardsBlobWhenHistoryIsFull verifies that a stored blob that
// could not be announced is discarded.
func TestUpload_DiscardsBlobWhenHistoryIsFull(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStore(ctrl)
	hub := newTestHub(t, files, 1)
	client := connectTestClient(t, hub, 16)
	req.NoError(hub.SendText(client, "fills the room"))
	expectEvent(t, client, EventNewMessage)
	handlers := NewHandlers(hub, files, NewConfig(), logs.GetLoggerFromString("ERROR"))

	blob := transfer.Blob{ID: "blob-1", Filename: "report.pdf", Size: 8, MimeType: "application/pdf"}
	files.EXPECT().MaxUploadSize().Return(int64(transfer.MB)).AnyTimes()
	files.EXPECT().
		Accept(gomock.Any(), gomock.Any(), "report.pdf", int64(0)).
		DoAndReturn(func(_ any, r io.Reader, _ string, _ int64) (transfer.Blob, error) {
			_, err := io.Copy(io.Discard, r)
			return blob, err
		})
	files.EXPECT().Discard("blob-1").Times(1)

	rec := httptest.NewRecorder()
	handlers.Upload(rec, newUploadRequest(t, client.ID(), []byte("%PDF-1.4")))

	req.Equal(http.StatusInsufficientStorage, rec.Code)
	req.Equal(1, hub.Room().History.Len())
}

func TestUpload_UnknownConnectionNeverStores(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStore(ctrl)
	hub := newTestHub(t, files, 0)
	handlers := NewHandlers(hub, files, NewConfig(), logs.GetLoggerFromString("ERROR"))

	files.EXPECT().MaxUploadSize().Return(int64(transfer.MB)).AnyTimes()
	files.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	rec := httptest.NewRecorder()
	handlers.Upload(rec, newUploadRequest(t, "gone", []byte("x")))

	req.Equal(http.StatusConflict, rec.Code)
	req.Contains(rec.Body.String(), "Unknown connection")
}

func TestDownload_ServesRangeRequests(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockFileStore(ctrl)
	hub := newTestHub(t, files, 0)
	handlers := NewHandlers(hub, files, NewConfig(), logs.GetLoggerFromString("ERROR"))

	content := "0123456789"
	files.EXPECT().Fetch("blob-1").Return(
		nopSeekCloser{strings.NewReader(content)},
		transfer.Blob{ID: "blob-1", Filename: "digits.txt", Size: 10, MimeType: "text/plain", SHA256: "abc", CreatedAt: time.Now()},
		nil,
	)

	r := httptest.NewRequest(http.MethodGet, "/download/blob-1", nil)
	r.Header.Set("Range", "bytes=2-5")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("blobID", "blob-1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	handlers.Download(rec, r)

	req.Equal(http.StatusPartialContent, rec.Code)
	req.Equal("2345", rec.Body.String())
	req.Equal(`"abc"`, rec.Header().Get("ETag"))
	req.Equal("attachment; filename=digits.txt", rec.Header().Get("Content-Disposition"))
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
