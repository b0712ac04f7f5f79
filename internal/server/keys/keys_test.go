package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
)

var (
	keyOnce sync.Once
	keyPool []*rsa.PrivateKey
)

// testKeys returns n distinct 2048-bit keys shared by the package tests.
func testKeys(t *testing.T, n int) []*rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		for i := 0; i < 3; i++ {
			k, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				panic(err)
			}
			keyPool = append(keyPool, k)
		}
	})
	if n > len(keyPool) {
		t.Fatalf("only %d test keys available", len(keyPool))
	}
	return keyPool[:n]
}
