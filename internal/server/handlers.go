// Package server exposes HTTP handlers, including WebSocket upgrades, file
// upload and download, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/lanshare/internal/session"
	"github.com/Tyrowin/lanshare/internal/transfer"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	connectionIDHeader = "X-Connection-ID"
	connectionIDField  = "connection_id"
	sizeField          = "size"
	fileField          = "file"
	// multipartSlack covers part headers and boundaries around the file bytes.
	multipartSlack = 1 << 20
	maxFieldSize   = 256
)

// Handlers serves the HTTP surface of a hub and its file store.
type Handlers struct {
	hub        *Hub
	files      FileStore
	log        *slog.Logger
	upgrader   websocket.Upgrader
	clientOpts ClientOptions
	started    time.Time
}

// NewHandlers builds the handlers for the given hub and file store.
func NewHandlers(hub *Hub, files FileStore, cfg Config, log *slog.Logger) *Handlers {
	origins := newOriginPolicy(cfg.Origins(), log)
	return &Handlers{
		hub:   hub,
		files: files,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		clientOpts: cfg.ClientOptions(),
		started:    time.Now(),
	}
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	FileID   string `json:"file_id"`
	EntryID  string `json:"entry_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// WebSocket upgrades the request and attaches the connection to the hub.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	if _, err := h.hub.Serve(conn, r.RemoteAddr, h.clientOpts); err != nil {
		h.log.Warn("Hub refused connection", "addr", r.RemoteAddr, "err", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// Upload streams a multipart file to storage and announces it to the room on
// behalf of the uploading connection. The connection id comes from the
// X-Connection-ID header or a connection_id field sent before the file part.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxUploadSize()+multipartSlack)

	reader, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Expected multipart/form-data")
		return
	}

	connectionID := r.Header.Get(connectionIDHeader)
	var declaredSize int64

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "No file provided")
			return
		}
		if err != nil {
			h.writeUploadError(w, err)
			return
		}

		switch part.FormName() {
		case connectionIDField:
			connectionID, err = readField(part)
		case sizeField:
			var value string
			if value, err = readField(part); err == nil {
				declaredSize, _ = strconv.ParseInt(value, 10, 64)
			}
		case fileField:
			h.acceptFile(w, r, part, connectionID, declaredSize)
			_ = part.Close()
			return
		default:
			_, err = io.Copy(io.Discard, part)
		}
		_ = part.Close()
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
	}
}

func (h *Handlers) acceptFile(w http.ResponseWriter, r *http.Request, part *multipart.Part, connectionID string, declaredSize int64) {
	filename := part.FileName()
	if filename == "" {
		writeJSONError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if connectionID == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing connection id")
		return
	}
	if _, ok := h.hub.Room().Presence.Lookup(connectionID); !ok {
		writeJSONError(w, http.StatusConflict, "Unknown connection")
		return
	}

	blob, err := h.files.Accept(r.Context(), part, filename, declaredSize)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	entry, err := h.hub.AnnounceFile(r.Context(), connectionID, blob)
	if err != nil {
		h.files.Discard(blob.ID)
		switch {
		case errors.Is(err, ErrUnknownConnection):
			writeJSONError(w, http.StatusConflict, "Unknown connection")
		case errors.Is(err, session.ErrCapacityExhausted):
			writeJSONError(w, http.StatusInsufficientStorage, "History is full")
		default:
			h.log.Warn("File announcement failed", "file", blob.Filename, "err", err)
			writeJSONError(w, http.StatusServiceUnavailable, "Server is shutting down")
		}
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		FileID:   blob.ID,
		EntryID:  string(entry.ID),
		Filename: blob.Filename,
		Size:     blob.Size,
		MimeType: blob.MimeType,
		Category: blob.Category,
	})
}

func (h *Handlers) writeUploadError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, transfer.ErrTooLarge), errors.As(err, &maxBytes):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, transfer.ErrStorage):
		h.log.Error("Upload failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "Upload failed")
	default:
		writeJSONError(w, http.StatusBadRequest, "Malformed upload")
	}
}

func readField(r io.Reader) (string, error) {
	value, err := io.ReadAll(io.LimitReader(r, maxFieldSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}

// Download serves a stored blob as an attachment. Range requests are
// supported.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "blobID")

	content, blob, err := h.files.Fetch(id)
	if err != nil {
		if errors.Is(err, transfer.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "File not found")
			return
		}
		h.log.Error("Download failed", "blob", id, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "Download failed")
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Filename}))
	if blob.SHA256 != "" {
		w.Header().Set("ETag", strconv.Quote(blob.SHA256))
	}
	http.ServeContent(w, r, blob.Filename, blob.CreatedAt, content)
}

// HealthHandler provides a simple liveness endpoint that returns plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "LanShare server is running!")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
