package graphstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/denizumutdereli/graphdb/pkg/hashvec"
	"github.com/denizumutdereli/graphdb/pkg/writequeue"
)

var (
	bucketNeurons  = []byte("neurons")
	bucketMerkle   = []byte("merkle")
	bucketTags     = []byte("tags")
	bucketSources  = []byte("sources")
	bucketSynapses = []byte("synapses")
	bucketSynOut   = []byte("syn_out")
	bucketSynIn    = []byte("syn_in")
)

// Config controls how a Store persists data and serializes adjacency
// mutations.
type Config struct {
	DataDir        string
	EmbeddingDim   int
	QueueMaxPending int
}

// Store is the persistent neuron/synapse graph store.
type Store struct {
	cfg Config
	db  *bbolt.DB

	queuesMu sync.Mutex
	queues   map[NeuronID]*writequeue.Queue
}

// Open initializes a Store rooted at cfg.DataDir/neurons/neurons.db.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("graphstore: DataDir required")
	}
	if cfg.QueueMaxPending <= 0 {
		cfg.QueueMaxPending = 100
	}
	dir := filepath.Join(cfg.DataDir, "neurons")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dir, "neurons.db"), 0o644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("graphstore: open db: %w", err)
	}
	buckets := [][]byte{bucketNeurons, bucketMerkle, bucketTags, bucketSources, bucketSynapses, bucketSynOut, bucketSynIn}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		cfg:    cfg,
		db:     db,
		queues: make(map[NeuronID]*writequeue.Queue),
	}, nil
}

// Close releases the underlying database handle and every per-neuron
// write queue.
func (s *Store) Close() error {
	s.queuesMu.Lock()
	for _, q := range s.queues {
		q.Close()
	}
	s.queuesMu.Unlock()
	return s.db.Close()
}

// queueFor returns the serial write queue scoped to neuronID,
// creating it on first use — the same lazy get-or-create pattern used
// to hand out one worker per index elsewhere in the engine.
func (s *Store) queueFor(id NeuronID) *writequeue.Queue {
	s.queuesMu.Lock()
	defer s.queuesMu.Unlock()
	q, ok := s.queues[id]
	if !ok {
		q = writequeue.New("neuron:"+string(id), s.cfg.QueueMaxPending)
		s.queues[id] = q
	}
	return q
}

func encode(v any) ([]byte, error) { return msgpack.Marshal(v) }

func decodeNeuron(raw []byte) (*Neuron, error) {
	var n Neuron
	if err := msgpack.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func decodeSynapse(raw []byte) (*Synapse, error) {
	var sy Synapse
	if err := msgpack.Unmarshal(raw, &sy); err != nil {
		return nil, err
	}
	return &sy, nil
}

// PutNeuron validates and persists a neuron record, updating its
// secondary indices (tags, source type, Merkle root) in the same
// transaction so a reader that observes the primary record also
// observes a matching secondary entry.
func (s *Store) PutNeuron(n *Neuron) error {
	if s.cfg.EmbeddingDim > 0 && len(n.Embedding) > 0 && len(n.Embedding) != s.cfg.EmbeddingDim {
		return fmt.Errorf("%w: embedding length %d, want %d", ErrValidation, len(n.Embedding), s.cfg.EmbeddingDim)
	}
	if n.OutgoingSynapses == nil {
		n.OutgoingSynapses = make(map[SynapseID]struct{})
	}
	if n.IncomingSynapses == nil {
		n.IncomingSynapses = make(map[SynapseID]struct{})
	}

	raw, err := encode(n)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketNeurons).Put([]byte(n.ID), raw); err != nil {
			return err
		}
		if !n.MerkleRoot.IsZero() {
			if err := tx.Bucket(bucketMerkle).Put([]byte(n.MerkleRoot.String()), []byte(n.ID)); err != nil {
				return err
			}
		}
		for _, tag := range n.Metadata.Tags {
			key := fmt.Sprintf("tag:%s:%s", tag, n.ID)
			if err := tx.Bucket(bucketTags).Put([]byte(key), nil); err != nil {
				return err
			}
		}
		if n.Metadata.SourceType != "" {
			key := fmt.Sprintf("src:%s:%s", n.Metadata.SourceType, n.ID)
			if err := tx.Bucket(bucketSources).Put([]byte(key), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNeuron returns the neuron record, or nil if absent.
func (s *Store) GetNeuron(id NeuronID) (*Neuron, error) {
	var n *Neuron
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketNeurons).Get([]byte(id))
		if raw == nil {
			return nil
		}
		decoded, err := decodeNeuron(raw)
		if err != nil {
			return err
		}
		n = decoded
		return nil
	})
	return n, err
}

// TouchAccess advances AccessCount and LastAccessed for a neuron.
// Both fields only ever advance.
func (s *Store) TouchAccess(id NeuronID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNeurons)
		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		n, err := decodeNeuron(raw)
		if err != nil {
			return err
		}
		n.Metadata.AccessCount++
		n.Metadata.LastAccessed = time.Now().UTC()
		encoded, err := encode(n)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), encoded)
	})
}

// GetAllNeuronIds returns every neuron id currently in the store.
func (s *Store) GetAllNeuronIds() ([]NeuronID, error) {
	var ids []NeuronID
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketNeurons).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, NeuronID(k))
		}
		return nil
	})
	return ids, err
}

// GetNeuronByMerkleRoot resolves a neuron by its Merkle root, or
// returns nil if no neuron currently has that root.
func (s *Store) GetNeuronByMerkleRoot(root hashvec.Hash) (*Neuron, error) {
	var id NeuronID
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMerkle).Get([]byte(root.String()))
		if raw != nil {
			id = NeuronID(raw)
		}
		return nil
	})
	if err != nil || id == "" {
		return nil, err
	}
	return s.GetNeuron(id)
}

// GetNeuronsByTag scans the tag-prefixed range for every neuron
// carrying tag.
func (s *Store) GetNeuronsByTag(tag string) ([]NeuronID, error) {
	return s.scanPrefixedIDs(bucketTags, "tag:"+tag+":")
}

// GetNeuronsBySourceType scans the source-type-prefixed range.
func (s *Store) GetNeuronsBySourceType(sourceType string) ([]NeuronID, error) {
	return s.scanPrefixedIDs(bucketSources, "src:"+sourceType+":")
}

func (s *Store) scanPrefixedIDs(bucket []byte, prefix string) ([]NeuronID, error) {
	var ids []NeuronID
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			ids = append(ids, NeuronID(strings.TrimPrefix(string(k), prefix)))
		}
		return nil
	})
	return ids, err
}

// DeleteNeuron removes a neuron record, its secondary indices, and
// every synapse it is an endpoint of. Callers are expected to have
// already released the neuron's chunk references through the chunk
// store; DeleteNeuron itself only owns graph-store state.
func (s *Store) DeleteNeuron(id NeuronID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketNeurons).Get([]byte(id))
		if raw == nil {
			return nil
		}
		n, err := decodeNeuron(raw)
		if err != nil {
			return err
		}

		for synID := range n.OutgoingSynapses {
			if err := s.removeSynapseLocked(tx, synID); err != nil {
				return err
			}
		}
		for synID := range n.IncomingSynapses {
			if err := s.removeSynapseLocked(tx, synID); err != nil {
				return err
			}
		}

		if !n.MerkleRoot.IsZero() {
			if err := tx.Bucket(bucketMerkle).Delete([]byte(n.MerkleRoot.String())); err != nil {
				return err
			}
		}
		for _, tag := range n.Metadata.Tags {
			if err := tx.Bucket(bucketTags).Delete([]byte(fmt.Sprintf("tag:%s:%s", tag, id))); err != nil {
				return err
			}
		}
		if n.Metadata.SourceType != "" {
			if err := tx.Bucket(bucketSources).Delete([]byte(fmt.Sprintf("src:%s:%s", n.Metadata.SourceType, id))); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketNeurons).Delete([]byte(id))
	})
}

// AddSynapse creates a synapse between two existing neurons, updating
// both endpoints' adjacency sets. Routed through the source neuron's
// serial write queue so concurrent writers on the same source cannot
// interleave the read-modify-write; the whole mutation runs in one
// bbolt transaction so a missing target endpoint aborts with
// ErrDanglingReference and leaves no partial write.
func (s *Store) AddSynapse(sy *Synapse) error {
	if sy.ID == "" {
		sy.ID = NewSynapseID()
	}
	if sy.CreatedAt.IsZero() {
		sy.CreatedAt = time.Now().UTC()
	}

	return s.queueFor(sy.SourceID).Submit(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			nb := tx.Bucket(bucketNeurons)
			srcRaw := nb.Get([]byte(sy.SourceID))
			tgtRaw := nb.Get([]byte(sy.TargetID))
			if srcRaw == nil || tgtRaw == nil {
				return ErrDanglingReference
			}
			src, err := decodeNeuron(srcRaw)
			if err != nil {
				return err
			}
			tgt, err := decodeNeuron(tgtRaw)
			if err != nil {
				return err
			}

			synRaw, err := encode(sy)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketSynapses).Put([]byte(sy.ID), synRaw); err != nil {
				return err
			}
			if err := tx.Bucket(bucketSynOut).Put([]byte(fmt.Sprintf("out:%s:%s", sy.SourceID, sy.ID)), []byte(sy.ID)); err != nil {
				return err
			}
			if err := tx.Bucket(bucketSynIn).Put([]byte(fmt.Sprintf("in:%s:%s", sy.TargetID, sy.ID)), []byte(sy.ID)); err != nil {
				return err
			}

			src.OutgoingSynapses[sy.ID] = struct{}{}
			tgt.IncomingSynapses[sy.ID] = struct{}{}
			srcEnc, err := encode(src)
			if err != nil {
				return err
			}
			if err := nb.Put([]byte(src.ID), srcEnc); err != nil {
				return err
			}
			if src.ID == tgt.ID {
				return nil
			}
			tgtEnc, err := encode(tgt)
			if err != nil {
				return err
			}
			return nb.Put([]byte(tgt.ID), tgtEnc)
		})
	})
}

// RemoveSynapse deletes a synapse and detaches it from both endpoints,
// routed through the source neuron's serial queue like AddSynapse.
func (s *Store) RemoveSynapse(id SynapseID) error {
	var sourceID NeuronID
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketSynapses).Get([]byte(id))
		if raw == nil {
			return nil
		}
		sy, err := decodeSynapse(raw)
		if err != nil {
			return err
		}
		sourceID = sy.SourceID
		return nil
	})
	if err != nil || sourceID == "" {
		return err
	}

	return s.queueFor(sourceID).Submit(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			return s.removeSynapseLocked(tx, id)
		})
	})
}

// removeSynapseLocked removes a synapse's record and both adjacency
// entries within an already-open transaction.
func (s *Store) removeSynapseLocked(tx *bbolt.Tx, id SynapseID) error {
	raw := tx.Bucket(bucketSynapses).Get([]byte(id))
	if raw == nil {
		return nil
	}
	sy, err := decodeSynapse(raw)
	if err != nil {
		return err
	}

	if err := tx.Bucket(bucketSynapses).Delete([]byte(id)); err != nil {
		return err
	}
	if err := tx.Bucket(bucketSynOut).Delete([]byte(fmt.Sprintf("out:%s:%s", sy.SourceID, id))); err != nil {
		return err
	}
	if err := tx.Bucket(bucketSynIn).Delete([]byte(fmt.Sprintf("in:%s:%s", sy.TargetID, id))); err != nil {
		return err
	}

	nb := tx.Bucket(bucketNeurons)
	if srcRaw := nb.Get([]byte(sy.SourceID)); srcRaw != nil {
		src, err := decodeNeuron(srcRaw)
		if err != nil {
			return err
		}
		delete(src.OutgoingSynapses, id)
		enc, err := encode(src)
		if err != nil {
			return err
		}
		if err := nb.Put([]byte(src.ID), enc); err != nil {
			return err
		}
	}
	if tgtRaw := nb.Get([]byte(sy.TargetID)); tgtRaw != nil && sy.TargetID != sy.SourceID {
		tgt, err := decodeNeuron(tgtRaw)
		if err != nil {
			return err
		}
		delete(tgt.IncomingSynapses, id)
		enc, err := encode(tgt)
		if err != nil {
			return err
		}
		if err := nb.Put([]byte(tgt.ID), enc); err != nil {
			return err
		}
	}
	return nil
}

// GetOutgoingSynapses returns every synapse whose source is id.
func (s *Store) GetOutgoingSynapses(id NeuronID) ([]*Synapse, error) {
	return s.resolveSynapses(bucketSynOut, fmt.Sprintf("out:%s:", id))
}

// GetIncomingSynapses returns every synapse whose target is id.
func (s *Store) GetIncomingSynapses(id NeuronID) ([]*Synapse, error) {
	return s.resolveSynapses(bucketSynIn, fmt.Sprintf("in:%s:", id))
}

func (s *Store) resolveSynapses(bucket []byte, prefix string) ([]*Synapse, error) {
	var out []*Synapse
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		p := []byte(prefix)
		synB := tx.Bucket(bucketSynapses)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			raw := synB.Get(v)
			if raw == nil {
				continue
			}
			sy, err := decodeSynapse(raw)
			if err != nil {
				return err
			}
			out = append(out, sy)
		}
		return nil
	})
	return out, err
}

// FindSynapseBetween returns the first synapse directly connecting
// source to target (in that direction), or nil if none exists.
func (s *Store) FindSynapseBetween(source, target NeuronID) (*Synapse, error) {
	out, err := s.GetOutgoingSynapses(source)
	if err != nil {
		return nil, err
	}
	for _, sy := range out {
		if sy.TargetID == target {
			return sy, nil
		}
	}
	return nil, nil
}

// UpdateSynapseWeight overwrites the weight of an existing synapse in
// place, routed through the source neuron's serial queue so it cannot
// race with AddSynapse/RemoveSynapse on the same neuron.
func (s *Store) UpdateSynapseWeight(id SynapseID, weight float64) error {
	var sourceID NeuronID
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketSynapses).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		sy, err := decodeSynapse(raw)
		if err != nil {
			return err
		}
		sourceID = sy.SourceID
		return nil
	})
	if err != nil {
		return err
	}

	return s.queueFor(sourceID).Submit(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			synB := tx.Bucket(bucketSynapses)
			raw := synB.Get([]byte(id))
			if raw == nil {
				return ErrNotFound
			}
			sy, err := decodeSynapse(raw)
			if err != nil {
				return err
			}
			sy.Weight = weight
			enc, err := encode(sy)
			if err != nil {
				return err
			}
			return synB.Put([]byte(id), enc)
		})
	})
}

// Compact requests KV range compaction over the entire key space by
// copying every live bucket into a fresh file and swapping it in.
// Mirrors chunkstore.Store.Compact's copy-and-rename technique, the
// standard way to reclaim space in an embedded B+tree store with no
// incremental compaction of its own.
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
