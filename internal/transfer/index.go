package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const blobPrefix = "blob:"

// OpenIndexDB opens the badger database backing the blob index. An empty dir
// keeps the index in memory, which matches the process-lifetime storage of blobs.
func OpenIndexDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening blob index: %w", err)
	}
	return db, nil
}

// Index records the metadata of every stored blob under "blob:{id}".
type Index struct {
	db  *badger.DB
	log *slog.Logger
}

func NewIndex(db *badger.DB, log *slog.Logger) *Index {
	return &Index{db: db, log: log}
}

func blobKey(id string) []byte {
	return []byte(blobPrefix + id)
}

// Put stores or replaces the record of a blob.
func (i *Index) Put(blob Blob) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return i.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(blob.ID), data)
	})
}

// Get returns the record of a blob, or ErrNotFound.
func (i *Index) Get(id string) (Blob, error) {
	var blob Blob
	err := i.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &blob)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}

// Delete removes the records of the given blobs in one batch.
func (i *Index) Delete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	wb := i.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(blobKey(id)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// IDs lists every indexed blob id.
func (i *Index) IDs() ([]string, error) {
	var ids []string
	err := i.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(blobPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
