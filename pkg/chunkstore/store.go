// Package chunkstore implements the content-addressable chunk store:
// opaque byte blobs identified by SHA3-256 hash,
// reference-counted so a chunk shared by several neurons is only
// removed once nothing references it. Metadata lives in an embedded
// bbolt key-value database; bytes live on the filesystem sharded by
// the first two hex characters of the hash, mirroring the persistence
// layer's atomic-write-then-rename durability discipline.
package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/denizumutdereli/graphdb/pkg/hashvec"
)

var metaBucket = []byte("chunk-meta")

// Config controls how a Store persists data.
type Config struct {
	DataDir       string
	FsyncPolicy   FsyncPolicy
	FsyncInterval time.Duration
}

// Store is the content-addressed chunk store.
type Store struct {
	cfg   Config
	db    *bbolt.DB
	bytes *byteShard

	initialized bool
}

// Open initializes a Store rooted at cfg.DataDir, creating
// "chunks/" (byte shards) and "chunk-meta/meta.db" (bbolt metadata) as
// needed.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("chunkstore: DataDir required")
	}
	metaDir := filepath.Join(cfg.DataDir, "chunk-meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(metaDir, "meta.db"), 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: open metadata db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	dur := newDurability(cfg.FsyncPolicy, cfg.FsyncInterval)
	shard, err := newByteShard(filepath.Join(cfg.DataDir, "chunks"), dur)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{cfg: cfg, db: db, bytes: shard, initialized: true}, nil
}

// Close releases the underlying metadata database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func metaKey(h hashvec.Hash) []byte {
	return []byte("meta:" + h.String())
}

func (s *Store) readMeta(tx *bbolt.Tx, h hashvec.Hash) (*Meta, error) {
	raw := tx.Bucket(metaBucket).Get(metaKey(h))
	if raw == nil {
		return nil, nil
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) writeMeta(tx *bbolt.Tx, m *Meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return tx.Bucket(metaBucket).Put([]byte("meta:"+m.Hash), raw)
}

// Put stores data, content-addressed by its SHA3-256 hash. If a chunk
// with the same hash already exists, its refCount is incremented and
// no bytes are rewritten (put is idempotent with respect to identity).
func (s *Store) Put(data []byte, index uint32, offset uint64, fingerprint *uint64) (hashvec.Hash, error) {
	if !s.initialized {
		return hashvec.Hash{}, ErrNotInitialized
	}
	h := hashvec.Sum(data)

	var isNew bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := s.readMeta(tx, h)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.RefCount++
			return s.writeMeta(tx, existing)
		}
		isNew = true
		return s.writeMeta(tx, &Meta{
			Hash:        h.String(),
			Size:        len(data),
			Index:       index,
			Offset:      offset,
			Fingerprint: fingerprint,
			CreatedAt:   time.Now().UTC(),
			RefCount:    1,
		})
	})
	if err != nil {
		return hashvec.Hash{}, err
	}

	if isNew {
		if err := s.bytes.write(h, data); err != nil {
			return hashvec.Hash{}, err
		}
	}
	return h, nil
}

// Get reads a chunk by hash. Returns (nil, nil) when absent. Returns
// ErrIntegrity if the stored bytes no longer hash to the key.
func (s *Store) Get(h hashvec.Hash) (*Chunk, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	var meta *Meta
	if err := s.db.View(func(tx *bbolt.Tx) error {
		m, err := s.readMeta(tx, h)
		meta = m
		return err
	}); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	data, err := s.bytes.read(h)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if !hashvec.Verify(data, h) {
		return nil, ErrIntegrity
	}

	return &Chunk{
		Index:       meta.Index,
		Offset:      meta.Offset,
		Data:        data,
		Hash:        h,
		Fingerprint: meta.Fingerprint,
	}, nil
}

// Has reports whether a chunk with the given hash is known to the
// store (metadata present), independent of byte availability.
func (s *Store) Has(h hashvec.Hash) bool {
	var found bool
	s.db.View(func(tx *bbolt.Tx) error {
		m, err := s.readMeta(tx, h)
		found = err == nil && m != nil
		return nil
	})
	return found
}

// GetMany reads several chunks, preserving input order. Absent entries
// are nil.
func (s *Store) GetMany(hashes []hashvec.Hash) ([]*Chunk, error) {
	out := make([]*Chunk, len(hashes))
	for i, h := range hashes {
		c, err := s.Get(h)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Delete decrements the chunk's refCount; once it reaches 0 the bytes
// and metadata are removed. Returns whether a record existed.
func (s *Store) Delete(h hashvec.Hash) (bool, error) {
	if !s.initialized {
		return false, ErrNotInitialized
	}
	var existed, removeBytes bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := s.readMeta(tx, h)
		if err != nil {
			return err
		}
		if meta == nil {
			return nil
		}
		existed = true
		meta.RefCount--
		if meta.RefCount <= 0 {
			removeBytes = true
			return tx.Bucket(metaBucket).Delete(metaKey(h))
		}
		return s.writeMeta(tx, meta)
	})
	if err != nil {
		return false, err
	}
	if removeBytes {
		if err := s.bytes.remove(h); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// HashIterator walks stored hashes lazily and is not safe for
// concurrent iteration or reuse once exhausted.
type HashIterator struct {
	hashes []hashvec.Hash
	pos    int
}

// Next advances the iterator, returning false once exhausted.
func (it *HashIterator) Next() (hashvec.Hash, bool) {
	if it.pos >= len(it.hashes) {
		return hashvec.Hash{}, false
	}
	h := it.hashes[it.pos]
	it.pos++
	return h, true
}

// GetAllHashes returns a lazy, finite, single-pass iterator over every
// stored chunk hash.
func (s *Store) GetAllHashes() (*HashIterator, error) {
	var hashes []hashvec.Hash
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(metaBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if h, ok := hashvec.ParseHash(string(k[len("meta:"):])); ok {
				hashes = append(hashes, h)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &HashIterator{hashes: hashes}, nil
}

// GetStats summarizes the chunk population.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	var total int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			var m Meta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			stats.TotalChunks++
			total += int64(m.Size)
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}
	stats.TotalSize = total
	if stats.TotalChunks > 0 {
		stats.AvgChunkSize = float64(total) / float64(stats.TotalChunks)
	}
	return stats, nil
}

// VerifyIntegrity re-hashes every stored chunk's bytes against its key.
func (s *Store) VerifyIntegrity() (IntegrityReport, error) {
	report := IntegrityReport{Valid: true}
	it, err := s.GetAllHashes()
	if err != nil {
		return report, err
	}
	for h, ok := it.Next(); ok; h, ok = it.Next() {
		data, err := s.bytes.read(h)
		if err != nil {
			return report, err
		}
		if data == nil {
			report.Valid = false
			report.Missing = append(report.Missing, h)
			continue
		}
		if !hashvec.Verify(data, h) {
			report.Valid = false
			report.Corrupted = append(report.Corrupted, h)
		}
	}
	return report, nil
}

// GC scans metadata for records whose refCount has fallen to zero or
// below (a state that should only arise from a crash between
// decrementing the count and removing the record) and deletes them.
// Returns the number removed.
func (s *Store) GC() (int, error) {
	var toDelete []hashvec.Hash
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(k, v []byte) error {
			var m Meta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.RefCount <= 0 {
				if h, ok := hashvec.ParseHash(m.Hash); ok {
					toDelete = append(toDelete, h)
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, h := range toDelete {
		existed, err := s.Delete(h)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
		}
	}
	return removed, nil
}

// Compact requests KV range compaction over the metadata key space by
// copying live pages into a fresh file and swapping it in, the
// standard technique for reclaiming space in an embedded B+tree store
// that has no incremental compaction of its own.
func (s *Store) Compact() error {
	path := s.db.Path()
	tmpPath := path + ".compact"

	tmp, err := bbolt.Open(tmpPath, 0o644, nil)
	if err != nil {
		return err
	}

	err = s.db.View(func(tx *bbolt.Tx) error {
		return tmp.Update(func(txTmp *bbolt.Tx) error {
			return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
				dst, err := txTmp.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return b.ForEach(func(k, v []byte) error {
					return dst.Put(append([]byte(nil), k...), append([]byte(nil), v...))
				})
			})
		})
	})
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return closeErr
	}

	if err := s.db.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	s.db = db
	return nil
}
