package refreshtokens

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *MemoryRepository, id string, issued time.Time) {
	t.Helper()
	require.NoError(t, r.Create(context.Background(), &models.RefreshToken{
		TokenID: id, UserID: userID, FamilyID: familyID,
		IssuedAt: issued, ExpiresAt: issued.Add(time.Hour),
	}))
}

func TestMemory_FindReturnsCopy(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, "a", time.Now())

	got, err := r.Find(context.Background(), "a")
	require.NoError(t, err)
	got.Revoked = true

	again, err := r.Find(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, again.Revoked)

	_, err = r.Find(context.Background(), "zzz")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_MarkReplacedSingleWinner(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, "a", time.Now())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.MarkReplaced(context.Background(), "a", "b")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	got, _ := r.Find(context.Background(), "a")
	assert.True(t, got.Revoked)
	require.NotNil(t, got.ReplacedBy)
	assert.Equal(t, "b", *got.ReplacedBy)
}

func TestMemory_RevokeOnlyLive(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, "a", time.Now())
	seed(t, r, "b", time.Now())

	ok, _ := r.MarkReplaced(context.Background(), "a", "b")
	require.True(t, ok)

	ok, _ = r.Revoke(context.Background(), "a")
	assert.False(t, ok, "rotated record cannot be revoked again")

	ok, _ = r.Revoke(context.Background(), "b")
	assert.True(t, ok)
	ok, _ = r.Revoke(context.Background(), "b")
	assert.False(t, ok)

	ok, _ = r.Revoke(context.Background(), "missing")
	assert.False(t, ok)
}

func TestMemory_RevokeFamilyAndList(t *testing.T) {
	r := NewMemoryRepository()
	t0 := time.Now()
	seed(t, r, "c", t0.Add(2*time.Second))
	seed(t, r, "a", t0)
	seed(t, r, "b", t0.Add(time.Second))
	require.NoError(t, r.Create(context.Background(), &models.RefreshToken{
		TokenID: "other", FamilyID: "another-family", IssuedAt: t0, ExpiresAt: t0.Add(time.Hour),
	}))

	n, err := r.RevokeFamily(context.Background(), familyID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	chain, err := r.ListFamily(context.Background(), familyID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{chain[0].TokenID, chain[1].TokenID, chain[2].TokenID})
	for _, rec := range chain {
		assert.True(t, rec.Revoked)
	}

	other, _ := r.Find(context.Background(), "other")
	assert.False(t, other.Revoked)
}

func TestMemory_DeleteExpired(t *testing.T) {
	r := NewMemoryRepository()
	past := time.Now().Add(-3 * time.Hour)
	seed(t, r, "old-revoked", past)
	seed(t, r, "old-live", past)
	seed(t, r, "fresh", time.Now())

	_, _ = r.Revoke(context.Background(), "old-revoked")

	n, err := r.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = r.Find(context.Background(), "old-revoked")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Find(context.Background(), "old-live")
	assert.NoError(t, err)
}
