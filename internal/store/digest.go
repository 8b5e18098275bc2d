package store

import (
	"github.com/zeebo/blake3"
)

// Digest is a keyed BLAKE3 digest of an uncompressed tree.
type Digest [32]byte

// treeKey is the ASCII of the domain name, zero-padded to 32 bytes.
var treeKey = [32]byte{
	't', 'r', 'a', 'c', 'e', 'l', 'a', 'y', 'o', 'u', 't', '.', 'l', 'e', 'd', 'g',
	'e', 'r', '.', 't', 'r', 'e', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func digestTree(data []byte) Digest {
	// NewKeyed only fails for keys that are not 32 bytes.
	hasher, err := blake3.NewKeyed(treeKey[:])
	if err != nil {
		panic("store: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
