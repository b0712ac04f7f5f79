package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	keyOnce  sync.Once
	testKey1 *rsa.PrivateKey
	testKey2 *rsa.PrivateKey
)

func signingKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if testKey1, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if testKey2, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return testKey1, testKey2
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type staticKeys struct{ key *rsa.PrivateKey }

func (s staticKeys) Generate(context.Context) (*rsa.PrivateKey, error) { return s.key, nil }

type testEnv struct {
	repos *repomanager.MemoryRepositoryManager
	ring  *keys.Ring
	codec *auth.Codec
	store *RefreshTokenStore
	block *Blocklist
	svc   *AuthService
	clock *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	k1, k2 := signingKeys(t)

	clock := &testClock{t: time.Now()}
	ring, err := keys.NewRing(k1, time.Hour)
	require.NoError(t, err)

	hasher, err := password.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	repos := repomanager.NewMemoryRepositoryManager()
	codec := auth.NewCodec(ring, auth.DefaultAccessTTL, auth.WithTimeFunc(clock.Now), auth.WithIssuer("authkeeper-test"))
	store := NewRefreshTokenStore(repos, 24*time.Hour, time.Hour, WithClock(clock.Now))
	block := NewBlocklist(repos, WithClock(clock.Now))

	svc := NewAuthService(AuthDeps{
		Repos:     repos,
		Hasher:    hasher,
		Codec:     codec,
		Refresh:   store,
		Blocklist: block,
		Keys:      staticKeys{key: k2},
		Ring:      ring,
	})
	return &testEnv{repos: repos, ring: ring, codec: codec, store: store, block: block, svc: svc, clock: clock}
}

func (e *testEnv) register(t *testing.T, name, pw string) string {
	t.Helper()
	u, err := e.svc.Register(context.Background(), name, name+"@example.com", pw)
	require.NoError(t, err)
	return u.ID
}

func (e *testEnv) login(t *testing.T, name, pw string) *TokenPair {
	t.Helper()
	pair, err := e.svc.Login(context.Background(), name, pw)
	require.NoError(t, err)
	return pair
}
