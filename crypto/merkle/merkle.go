// Package merkle verifies allow-list membership proofs against a committed
// root. Proofs use sorted-pair keccak256 hashing so verification does not
// depend on the position of a leaf or its siblings.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Hash is a 32-byte keccak digest.
type Hash = common.Hash

var (
	ErrEmptyTree   = errors.New("merkle: no leaves")
	ErrLeafMissing = errors.New("merkle: leaf not in tree")
)

// AccountLeaf hashes the raw account bytes.
func AccountLeaf(account [20]byte) Hash {
	return ethcrypto.Keccak256Hash(account[:])
}

// AllowanceLeaf binds an account to a quantity, matching the tightly packed
// (address, uint256) encoding used by allowance commitments.
func AllowanceLeaf(account [20]byte, quantity uint64) Hash {
	amount := uint256.NewInt(quantity).Bytes32()
	return ethcrypto.Keccak256Hash(account[:], amount[:])
}

// HashPair hashes two nodes in canonical (ascending) order.
func HashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return ethcrypto.Keccak256Hash(a[:], b[:])
	}
	return ethcrypto.Keccak256Hash(b[:], a[:])
}

// ComputeRoot folds the proof over leaf.
func ComputeRoot(leaf Hash, proof []Hash) Hash {
	node := leaf
	for _, sibling := range proof {
		node = HashPair(node, sibling)
	}
	return node
}

// Verify reports whether proof links leaf to root.
func Verify(root Hash, leaf Hash, proof []Hash) bool {
	if root == (Hash{}) {
		return false
	}
	return ComputeRoot(leaf, proof) == root
}

// ParseProof decodes 0x-prefixed 32-byte hex nodes.
func ParseProof(nodes []string) ([]Hash, error) {
	out := make([]Hash, 0, len(nodes))
	for i, node := range nodes {
		raw, err := hexutil.Decode(node)
		if err != nil {
			return nil, fmt.Errorf("merkle: proof[%d]: %w", i, err)
		}
		if len(raw) != common.HashLength {
			return nil, fmt.Errorf("merkle: proof[%d]: want 32 bytes, got %d", i, len(raw))
		}
		out = append(out, common.BytesToHash(raw))
	}
	return out, nil
}

// EncodeProof renders proof nodes as 0x hex strings.
func EncodeProof(proof []Hash) []string {
	out := make([]string, len(proof))
	for i, node := range proof {
		out[i] = node.Hex()
	}
	return out
}
