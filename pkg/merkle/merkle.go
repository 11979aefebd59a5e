// Package merkle builds the canonical binary Merkle tree over a
// neuron's ordered chunk hashes and produces
// inclusion proofs verifiable against the root alone.
package merkle

import "github.com/denizumutdereli/graphdb/pkg/hashvec"

// Side identifies which side of a parent a sibling hash sits on.
type Side int

const (
	Left Side = iota
	Right
)

// Tree retains every level so proofs can be produced for any leaf
// without recomputation.
type Tree struct {
	levels [][]hashvec.Hash // levels[0] is the leaves, last level has len 1
}

// Root returns the tree's root hash. An empty tree's root is the
// all-zero hash.
func (t *Tree) Root() hashvec.Hash {
	if len(t.levels) == 0 {
		return hashvec.Hash{}
	}
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return hashvec.Hash{}
	}
	return top[0]
}

// BuildTree constructs a Merkle tree over an ordered list of leaf
// hashes. A single element is its own root with no padding; an odd
// count at any level duplicates the last node (standard padding).
func BuildTree(hashes []hashvec.Hash) *Tree {
	if len(hashes) == 0 {
		return &Tree{levels: [][]hashvec.Hash{{}}}
	}

	leaves := make([]hashvec.Hash, len(hashes))
	copy(leaves, hashes)

	levels := [][]hashvec.Hash{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([]hashvec.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}
}

func hashPair(left, right hashvec.Hash) hashvec.Hash {
	buf := make([]byte, 0, hashvec.Size*2)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return hashvec.Sum(buf)
}

// Sibling is one step of an inclusion proof.
type Sibling struct {
	Hash hashvec.Hash
	Side Side
}

// Proof is an inclusion proof for a single leaf.
type Proof struct {
	LeafHash hashvec.Hash
	Siblings []Sibling
	RootHash hashvec.Hash
}

// GenerateProof produces an inclusion proof for the leaf at
// leafIndex. Returns false if the index is out of range.
func GenerateProof(t *Tree, leafIndex int) (Proof, bool) {
	leaves := t.levels[0]
	if leafIndex < 0 || leafIndex >= len(leaves) {
		return Proof{}, false
	}

	proof := Proof{LeafHash: leaves[leafIndex], RootHash: t.Root()}
	idx := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		isRightChild := idx%2 == 1
		var siblingIdx int
		var side Side
		if isRightChild {
			siblingIdx = idx - 1
			side = Left
		} else {
			siblingIdx = idx + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = idx // odd-length level: node is duplicated as its own sibling
			}
			side = Right
		}
		proof.Siblings = append(proof.Siblings, Sibling{Hash: nodes[siblingIdx], Side: side})
		idx /= 2
	}
	return proof, true
}

// VerifyProof recomputes the root from the proof's leaf and sibling
// chain and reports whether it matches RootHash.
func VerifyProof(p Proof) bool {
	current := p.LeafHash
	for _, sib := range p.Siblings {
		switch sib.Side {
		case Left:
			current = hashPair(sib.Hash, current)
		case Right:
			current = hashPair(current, sib.Hash)
		}
	}
	return current == p.RootHash
}

// Root is a convenience wrapper: build the tree over hashes and return
// only its root.
func Root(hashes []hashvec.Hash) hashvec.Hash {
	return BuildTree(hashes).Root()
}
