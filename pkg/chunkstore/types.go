package chunkstore

import (
	"time"

	"github.com/denizumutdereli/graphdb/pkg/hashvec"
)

// Chunk is an immutable byte blob addressed by its SHA3-256 hash. Many
// neurons may reference the same chunk.
type Chunk struct {
	Index       uint32
	Offset      uint64
	Data        []byte
	Hash        hashvec.Hash
	Fingerprint *uint64
}

// Meta is the chunk metadata record kept alongside, but separately
// from, the chunk bytes.
type Meta struct {
	Hash        string    `json:"hash"`
	Size        int       `json:"size"`
	Index       uint32    `json:"index"`
	Offset      uint64    `json:"offset"`
	Fingerprint *uint64   `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	RefCount    int32     `json:"refCount"`
}

// Stats summarizes the chunk population.
type Stats struct {
	TotalChunks   int
	TotalSize     int64
	AvgChunkSize  float64
}

// IntegrityReport is the result of a full re-hash sweep.
type IntegrityReport struct {
	Valid     bool
	Corrupted []hashvec.Hash
	Missing   []hashvec.Hash
}
