// Package transfer stores uploaded files out of band from the real-time channel
// and serves them back by blob id.
package transfer

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrNotFound is returned for unknown blob ids and for blobs released by a
	// history clear.
	ErrNotFound = errors.New("blob not found")
	// ErrStorage wraps any write or read failure of the blob storage.
	ErrStorage = errors.New("blob storage failure")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload exceeds maximum size")
)

const (
	KB = 1024
	MB = KB * KB
	GB = MB * KB
)

// Blob is the metadata of one stored upload.
type Blob struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	Category  string    `json:"category"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	CategoryImages    = "images"
	CategoryVideos    = "videos"
	CategoryDocuments = "documents"
	CategoryAudio     = "audio"
	CategoryOther     = "other"
)

var categoryByExtension = map[string]string{
	"png": CategoryImages, "jpg": CategoryImages, "jpeg": CategoryImages, "gif": CategoryImages,
	"webp": CategoryImages, "svg": CategoryImages, "bmp": CategoryImages, "ico": CategoryImages,
	"mp4": CategoryVideos, "mkv": CategoryVideos, "avi": CategoryVideos, "mov": CategoryVideos,
	"wmv": CategoryVideos, "flv": CategoryVideos, "webm": CategoryVideos, "m4v": CategoryVideos,
	"pdf": CategoryDocuments, "doc": CategoryDocuments, "docx": CategoryDocuments, "txt": CategoryDocuments,
	"xlsx": CategoryDocuments, "xls": CategoryDocuments, "ppt": CategoryDocuments, "pptx": CategoryDocuments,
	"csv": CategoryDocuments, "odt": CategoryDocuments,
	"mp3": CategoryAudio, "wav": CategoryAudio, "ogg": CategoryAudio, "flac": CategoryAudio,
	"m4a": CategoryAudio, "aac": CategoryAudio, "wma": CategoryAudio,
}

// Category classifies a file by extension, falling back to the sniffed mime type.
func Category(filename, mimeType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if category, ok := categoryByExtension[ext]; ok {
		return category
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImages
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideos
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryAudio
	}
	return CategoryOther
}

// SanitizeFilename keeps the base name of a client supplied filename and
// replaces anything outside [A-Za-z0-9._-] so it is safe in headers and logs.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, name)

	cleaned = strings.TrimLeft(cleaned, "._")
	if cleaned == "" {
		return "unnamed"
	}
	if len(cleaned) > 255 {
		ext := filepath.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:255-len(ext)] + ext
	}
	return cleaned
}
