package merkle

// Tree is an in-memory sorted-pair tree over pre-hashed leaves. Leaves keep
// their insertion order; an odd node at the end of a level is carried up
// unchanged. Commitments are normally produced off-line; the tree exists for
// tooling and tests that need proofs matching that layout.
type Tree struct {
	levels [][]Hash
}

// NewTree builds a tree from hashed leaves.
func NewTree(leaves []Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := append([]Hash(nil), leaves...)
	levels := [][]Hash{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the committed digest.
func (t *Tree) Root() Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling path for leaf.
func (t *Tree) Proof(leaf Hash) ([]Hash, error) {
	index := -1
	for i, candidate := range t.levels[0] {
		if candidate == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrLeafMissing
	}
	proof := make([]Hash, 0, len(t.levels))
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof, nil
}
