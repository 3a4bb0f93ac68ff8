// Package bolt persists whitelist snapshots in a bbolt database so a
// restart can serve the last known-good whitelist before the file is read.
package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/wb-access/internal/access/repos/whitelist"
)

var (
	bucketKeys = []byte("keys")
	bucketMeta = []byte("meta")

	metaSource  = []byte("source")
	metaLoaded  = []byte("loaded")
	metaSkipped = []byte("skipped")
)

// ErrNoSnapshot is returned by Restore when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Options configures how restored snapshots are rebuilt.
type Options struct {
	Bloom  whitelist.BloomFactory
	FPRate float64
}

// Store implements snapshot persistence on bbolt.
type Store struct {
	db   *bbolt.DB
	opts Options
}

// Open opens (or creates) the database at path and ensures buckets exist.
func Open(path string, opts Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKeys); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, opts: opts}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the persisted snapshot with snap in a single transaction.
func (s *Store) Save(snap *whitelist.Snapshot) error {
	meta := snap.Meta()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketKeys); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketKeys)
		if err != nil {
			return err
		}
		for _, k := range snap.Keys() {
			if err := b.Put([]byte(k), []byte{1}); err != nil {
				return err
			}
		}
		m := tx.Bucket(bucketMeta)
		if err := m.Put(metaSource, []byte(meta.Source)); err != nil {
			return err
		}
		if err := m.Put(metaLoaded, encodeInt(meta.LoadedAt.UnixNano())); err != nil {
			return err
		}
		return m.Put(metaSkipped, encodeInt(int64(meta.Skipped)))
	})
}

// Restore rebuilds the persisted snapshot. It returns ErrNoSnapshot when
// Save has never succeeded on this database.
func (s *Store) Restore() (*whitelist.Snapshot, error) {
	var (
		keys []string
		meta whitelist.Meta
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		m := tx.Bucket(bucketMeta)
		loaded := m.Get(metaLoaded)
		if len(loaded) != 8 {
			return ErrNoSnapshot
		}
		meta.Source = string(m.Get(metaSource))
		meta.LoadedAt = time.Unix(0, decodeInt(loaded))
		if v := m.Get(metaSkipped); len(v) == 8 {
			meta.Skipped = int(decodeInt(v))
		}
		b := tx.Bucket(bucketKeys)
		keys = make([]string, 0, b.Stats().KeyN)
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return whitelist.NewSnapshot(keys, meta, s.opts.Bloom, s.opts.FPRate), nil
}

func encodeInt(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }
