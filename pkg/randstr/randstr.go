// Package randstr generates random strings from a fixed character set
// using an unbiased cryptographic source.
package randstr

import (
	"crypto/rand"
	"math/big"
)

type Generator struct {
	charset []byte
}

func New(charset []byte) *Generator {
	if len(charset) == 0 {
		panic("randstr: empty charset")
	}

	return &Generator{charset: charset}
}

// GenerateRandomString returns a string of the given length. Each character is
// drawn independently and uniformly from the charset, so short human-shareable
// codes carry no modulo bias.
func (g *Generator) GenerateRandomString(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(g.charset)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		b[i] = g.charset[n.Int64()]
	}

	return string(b)
}
