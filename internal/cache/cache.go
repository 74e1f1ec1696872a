// Package cache is a bbolt-backed content cache keyed by URL, with a fixed time-to-live.
// Stale entries are treated as misses and overwritten on the next write.
package cache

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

var Buckets = struct {
	Metadata []byte
	Content  []byte
}{
	Metadata: []byte("__metadata__"),
	Content:  []byte("content"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

const DefaultTTL = 24 * time.Hour

type entry struct {
	Content   []byte    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Cache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Content); err != nil {
			return err
		}
		version, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, version)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached content for the URL, or (nil, false) when there is no entry or the
// entry has outlived the TTL.
func (c *Cache) Get(url string) ([]byte, bool) {
	var content []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(Buckets.Content).Get([]byte(url))
		if raw == nil {
			return nil
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			// Unreadable entries count as misses; the next Put replaces them.
			return nil
		}
		if c.now().Sub(e.FetchedAt) > c.ttl {
			return nil
		}
		content = e.Content
		return nil
	})
	if err != nil || content == nil {
		return nil, false
	}
	return content, true
}

func (c *Cache) Put(url string, content []byte) error {
	raw, err := json.Marshal(entry{Content: content, FetchedAt: c.now()})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Content).Put([]byte(url), raw)
	})
}

// Prune removes every entry older than the TTL.
func (c *Cache) Prune() (removed int, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Content)
		cursor := bucket.Cursor()
		var stale [][]byte
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || c.now().Sub(e.FetchedAt) > c.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
