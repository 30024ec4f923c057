package randstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomString(t *testing.T) {
	charset := []byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	g := New(charset)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s := g.GenerateRandomString(6)
		assert.Len(t, s, 6)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(string(charset), r), "character %q not in charset", r)
		}
		seen[s] = struct{}{}
	}

	// 100 draws from a 32^6 space colliding down to a handful would mean the
	// generator is broken.
	assert.Greater(t, len(seen), 90)
}

func TestNewEmptyCharsetPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}
