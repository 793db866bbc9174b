// Package session holds the shared room history: an ordered, append-only log of
// text and file entries that can be cleared atomically.
package session

import (
	"time"

	"github.com/samber/lo"
)

// EntryID identifies one history entry.
type EntryID string

// Kind is the wire discriminator of an entry.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// Entry is one immutable item of history. The set of implementations is closed:
// TextEntry and FileEntry.
type Entry interface {
	EntryID() EntryID
	Kind() Kind
	isEntry()
}

// TextEntry is a short text message posted by a device.
type TextEntry struct {
	ID        EntryID
	Content   string
	Sender    string
	SenderID  string
	Timestamp time.Time
}

func (e TextEntry) EntryID() EntryID { return e.ID }
func (e TextEntry) Kind() Kind       { return KindText }
func (TextEntry) isEntry()           {}

// FileEntry references a stored blob. BlobID stays valid until the next clear.
type FileEntry struct {
	ID        EntryID
	Filename  string
	Size      int64
	BlobID    string
	MimeType  string
	Category  string
	Sender    string
	SenderID  string
	Timestamp time.Time
}

func (e FileEntry) EntryID() EntryID { return e.ID }
func (e FileEntry) Kind() Kind       { return KindFile }
func (FileEntry) isEntry()           {}

// BlobIDs returns the blob references held by the given entries, in order.
func BlobIDs(entries []Entry) []string {
	return lo.FilterMap(entries, func(e Entry, _ int) (string, bool) {
		f, ok := e.(FileEntry)
		return f.BlobID, ok && f.BlobID != ""
	})
}
