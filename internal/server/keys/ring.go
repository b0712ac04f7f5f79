// Package keys holds the RS256 signing keys of the server: the key ring used
// to sign and verify access tokens, the sources a private key can be loaded
// from, a file watcher that rotates the ring, and the JWKS document.
package keys

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoKey is returned when a ring is built or rotated without a key.
var ErrNoKey = errors.New("no signing key")

type publicKey struct {
	kid string
	key *rsa.PublicKey
	// zero for the active key
	validUntil time.Time
}

// snapshot is never mutated once published.
type snapshot struct {
	activeKID string
	active    *rsa.PrivateKey
	keys      map[string]publicKey
}

// Ring is a set of RSA keys with exactly one active signing key. Keys that
// were rotated out keep verifying tokens until their retention deadline.
//
// Verification reads an immutable snapshot through an atomic pointer and
// never blocks; Rotate serializes writers and publishes a fresh snapshot.
type Ring struct {
	mu        sync.Mutex
	current   atomic.Pointer[snapshot]
	retention time.Duration
	now       func() time.Time
}

// RingOption configures a Ring.
type RingOption func(*Ring)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RingOption {
	return func(r *Ring) { r.now = now }
}

// NewRing builds a ring whose only key is active.
func NewRing(active *rsa.PrivateKey, retention time.Duration, opts ...RingOption) (*Ring, error) {
	if active == nil {
		return nil, ErrNoKey
	}
	r := &Ring{retention: retention, now: time.Now}
	for _, o := range opts {
		o(r)
	}

	kid, err := Thumbprint(&active.PublicKey)
	if err != nil {
		return nil, err
	}
	r.current.Store(&snapshot{
		activeKID: kid,
		active:    active,
		keys:      map[string]publicKey{kid: {kid: kid, key: &active.PublicKey}},
	})
	return r, nil
}

// ActiveKID returns the key id new tokens are signed with.
func (r *Ring) ActiveKID() string {
	return r.current.Load().activeKID
}

// Sign signs claims with RS256 and the active key, setting kid in the header.
func (r *Ring) Sign(claims jwt.Claims) (string, error) {
	s := r.current.Load()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.activeKID
	return token.SignedString(s.active)
}

// Keyfunc resolves the verification key of a parsed token. Unknown or
// expired key ids and algorithms other than RS256 yield ErrInvalidSignature.
func (r *Ring) Keyfunc(token *jwt.Token) (any, error) {
	if token.Method == nil || token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return nil, common.ErrInvalidSignature
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, common.ErrInvalidSignature
	}
	pk, ok := r.current.Load().keys[kid]
	if !ok || !r.usable(pk) {
		return nil, common.ErrInvalidSignature
	}
	return pk.key, nil
}

func (r *Ring) usable(pk publicKey) bool {
	return pk.validUntil.IsZero() || r.now().Before(pk.validUntil)
}

// Rotate makes next the active key. The previously active key is retained
// for verification until now+retention; retired keys past their deadline are
// dropped. Rotating to the key that is already active is a no-op.
func (r *Ring) Rotate(next *rsa.PrivateKey) (string, error) {
	if next == nil {
		return "", ErrNoKey
	}
	kid, err := Thumbprint(&next.PublicKey)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	if old.activeKID == kid {
		return kid, nil
	}

	now := r.now()
	keys := make(map[string]publicKey, len(old.keys)+1)
	for id, pk := range old.keys {
		if !pk.validUntil.IsZero() && !now.Before(pk.validUntil) {
			continue
		}
		keys[id] = pk
	}
	prev := keys[old.activeKID]
	prev.validUntil = now.Add(r.retention)
	keys[old.activeKID] = prev
	keys[kid] = publicKey{kid: kid, key: &next.PublicKey}

	r.current.Store(&snapshot{activeKID: kid, active: next, keys: keys})
	return kid, nil
}

// PublicKey describes one verification key of the ring.
type PublicKey struct {
	KID        string
	Key        *rsa.PublicKey
	Active     bool
	ValidUntil time.Time
}

// PublicKeys lists the keys that currently verify tokens, active key first.
func (r *Ring) PublicKeys() []PublicKey {
	s := r.current.Load()
	out := make([]PublicKey, 0, len(s.keys))
	for _, pk := range s.keys {
		if !r.usable(pk) {
			continue
		}
		out = append(out, PublicKey{
			KID:        pk.kid,
			Key:        pk.key,
			Active:     pk.kid == s.activeKID,
			ValidUntil: pk.validUntil,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].ValidUntil.After(out[j].ValidUntil)
	})
	return out
}

// Thumbprint computes the RFC 7638 JWK thumbprint of an RSA public key,
// base64url encoded without padding.
func Thumbprint(pub *rsa.PublicKey) (string, error) {
	if pub == nil || pub.N == nil {
		return "", ErrNoKey
	}
	// members in lexicographic order, no whitespace
	canonical, err := json.Marshal(struct {
		E   string `json:"e"`
		Kty string `json:"kty"`
		N   string `json:"n"`
	}{
		E:   encodeExponent(pub.E),
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("thumbprint: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

func encodeExponent(e int) string {
	return base64.RawURLEncoding.EncodeToString(big.NewInt(int64(e)).Bytes())
}
