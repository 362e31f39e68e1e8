// Package registry keeps a catalogue of ingested files and web pages in a
// bbolt database, so listings and change detection survive restarts.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github/itish2003/ragqa/models"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("registry entry not found")

var (
	bucketDocs = []byte("documents")
	bucketWeb  = []byte("web_sources")
)

func bucketFor(t models.SourceType) []byte {
	if t == models.SourceWeb {
		return bucketWeb
	}
	return bucketDocs
}

// Registry stores one models.FileInfo per ingested source.
// Documents are keyed by file name, web pages by URL.
type Registry struct {
	db *bbolt.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating registry directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening registry %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketWeb} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry buckets: %w", err)
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

func key(info models.FileInfo) string {
	if info.SourceType == models.SourceWeb {
		return info.Source
	}
	return info.Name
}

// Put inserts or replaces an entry.
func (r *Registry) Put(info models.FileInfo) error {
	k := key(info)
	if k == "" {
		return fmt.Errorf("registry entry has no name")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFor(info.SourceType)).Put([]byte(k), data)
	})
}

// Get returns the entry for name (or URL), or ErrNotFound.
func (r *Registry) Get(t models.SourceType, name string) (models.FileInfo, error) {
	var info models.FileInfo
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFor(t)).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &info)
	})
	return info, err
}

// Delete removes an entry; a missing entry returns ErrNotFound.
func (r *Registry) Delete(t models.SourceType, name string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFor(t))
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}

// List returns every entry of a type, oldest first.
func (r *Registry) List(t models.SourceType) ([]models.FileInfo, error) {
	var out []models.FileInfo
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFor(t)).ForEach(func(_, v []byte) error {
			var info models.FileInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			out = append(out, info)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing registry: %w", err)
	}
	slices.SortStableFunc(out, func(a, b models.FileInfo) int {
		return a.UploadedAt.Compare(b.UploadedAt)
	})
	return out, nil
}

// Count returns the number of entries of a type.
func (r *Registry) Count(t models.SourceType) (int, error) {
	n := 0
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketFor(t)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear drops every entry of both types.
func (r *Registry) Clear() error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketWeb} {
			if err := tx.DeleteBucket(b); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}
