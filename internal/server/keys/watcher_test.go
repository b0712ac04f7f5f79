package keys

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RotatesOnKeyFileChange(t *testing.T) {
	ks := testKeys(t, 2)
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, WriteFile(path, ks[0]))

	r, err := NewRing(ks[0], time.Hour)
	require.NoError(t, err)

	w := NewWatcher(path, r, logging.Nop())
	w.debounce = 20 * time.Millisecond
	rotated := make(chan string, 1)
	w.rotated = func(kid string) { rotated <- kid }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// unrelated files in the directory are ignored
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o600))

	require.NoError(t, WriteFile(path, ks[1]))

	want, err := Thumbprint(&ks[1].PublicKey)
	require.NoError(t, err)
	select {
	case kid := <-rotated:
		assert.Equal(t, want, kid)
		assert.Equal(t, want, r.ActiveKID())
	case <-time.After(5 * time.Second):
		t.Fatal("ring was not rotated")
	}
}

func TestWatcher_BadKeyKeepsCurrent(t *testing.T) {
	k := testKeys(t, 1)[0]
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	r, err := NewRing(k, time.Hour)
	require.NoError(t, err)
	before := r.ActiveKID()

	w := NewWatcher(path, r, logging.Nop())
	w.reload(context.Background())
	assert.Equal(t, before, r.ActiveKID())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	k := testKeys(t, 1)[0]
	r, err := NewRing(k, time.Hour)
	require.NoError(t, err)

	w := NewWatcher(filepath.Join(t.TempDir(), "nope", "signing.pem"), r, logging.Nop())
	assert.Error(t, w.Run(context.Background()))
}
