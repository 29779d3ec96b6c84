package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func accounts(n int) [][20]byte {
	out := make([][20]byte, n)
	for i := range out {
		out[i][0] = byte(i + 1)
		out[i][19] = 0xEE
	}
	return out
}

func TestTreeProofsVerify(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8} {
		members := accounts(size)
		leaves := make([]Hash, len(members))
		for i, m := range members {
			leaves[i] = AccountLeaf(m)
		}
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		for _, m := range members {
			proof, err := tree.Proof(AccountLeaf(m))
			require.NoError(t, err)
			require.True(t, Verify(tree.Root(), AccountLeaf(m), proof), "size %d", size)
		}
	}
}

func TestVerifyRejectsOutsidersAndForeignRoots(t *testing.T) {
	members := accounts(4)
	leaves := []Hash{AccountLeaf(members[0]), AccountLeaf(members[1])}
	tree, err := NewTree(leaves)
	require.NoError(t, err)
	proof, err := tree.Proof(leaves[0])
	require.NoError(t, err)

	require.False(t, Verify(tree.Root(), AccountLeaf(members[2]), proof))

	other, err := NewTree([]Hash{AccountLeaf(members[2]), AccountLeaf(members[3])})
	require.NoError(t, err)
	require.False(t, Verify(other.Root(), leaves[0], proof))
	require.False(t, Verify(Hash{}, leaves[0], proof))

	_, err = tree.Proof(AccountLeaf(members[3]))
	require.ErrorIs(t, err, ErrLeafMissing)
	_, err = NewTree(nil)
	require.ErrorIs(t, err, ErrEmptyTree)
}

func TestSortedPairIsOrderIndependent(t *testing.T) {
	a := AccountLeaf(accounts(1)[0])
	b := AllowanceLeaf(accounts(1)[0], 3)
	require.Equal(t, HashPair(a, b), HashPair(b, a))
	require.NotEqual(t, AllowanceLeaf(accounts(1)[0], 3), AllowanceLeaf(accounts(1)[0], 4))
}

func TestAllowanceLeafEncoding(t *testing.T) {
	account := common.HexToAddress("0x005202D060f11AEd313155c47a7B67E564b711a9")
	packed := append(account.Bytes(), common.LeftPadBytes([]byte{5}, 32)...)
	require.Len(t, packed, 52)
	require.Equal(t, AllowanceLeaf(account, 5), Hash(keccak(packed)))
}

func TestParseProof(t *testing.T) {
	leaf := AccountLeaf(accounts(1)[0])
	parsed, err := ParseProof(EncodeProof([]Hash{leaf}))
	require.NoError(t, err)
	require.Equal(t, []Hash{leaf}, parsed)

	_, err = ParseProof([]string{"0x1234"})
	require.Error(t, err)
	_, err = ParseProof([]string{"zz"})
	require.Error(t, err)
}
