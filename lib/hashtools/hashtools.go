package hashtools

import (
	"hash"
	"math/big"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/cpu"
)

// compact content-derived keys for stored articles.
// 28 bytes is plenty for uniqueness and keeps encoded form short.

const HashLength = 28

type hashCtx struct {
	h      hash.Hash
	x      big.Int
	strBuf [44]byte // floor(log36(2^224 - 1)) + 1
}

var newHasher func() hash.Hash

func init() {
	// blake2b tends to win on 64bit CPUs with AVX2,
	// blake3 elsewhere. either is fine, pick one per process.
	if cpu.X86.HasAVX2 {
		newHasher = func() hash.Hash {
			x, _ := blake2b.New(HashLength, nil)
			return x
		}
	} else {
		newHasher = func() hash.Hash { return blake3.New() }
	}
}

var ctxPool = sync.Pool{
	New: func() interface{} {
		return &hashCtx{h: newHasher()}
	},
}

// HashToString hashes b and encodes result in lowercase base36.
func HashToString(b []byte) string {
	c := ctxPool.Get().(*hashCtx)
	c.h.Reset()
	c.h.Write(b)
	sum := c.h.Sum(c.strBuf[:0])

	c.x.SetBytes(sum[:HashLength])
	s := string(c.x.Append(c.strBuf[:0], 36))

	ctxPool.Put(c)
	return s
}
