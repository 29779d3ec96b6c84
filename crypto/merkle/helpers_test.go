package merkle

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

func keccak(data []byte) [32]byte {
	return ethcrypto.Keccak256Hash(data)
}
