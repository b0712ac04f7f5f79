package refreshtokens

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// MemoryRepository keeps records in process memory. Each conditional update
// runs under the mutex, which gives it the same single-winner behaviour as
// the row-level UPDATE in PostgresRepository.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) Create(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := *t
	rec.ReplacedBy = cloneString(t.ReplacedBy)
	r.tokens[t.TokenID] = rec
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, tokenID string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[tokenID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	rec.ReplacedBy = cloneString(rec.ReplacedBy)
	return &rec, nil
}

func (r *MemoryRepository) MarkReplaced(_ context.Context, tokenID, replacedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[tokenID]
	if !ok || rec.Revoked || rec.ReplacedBy != nil {
		return false, nil
	}
	rec.Revoked = true
	rec.ReplacedBy = &replacedBy
	r.tokens[tokenID] = rec
	return true, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[tokenID]
	if !ok || rec.Revoked || rec.ReplacedBy != nil {
		return false, nil
	}
	rec.Revoked = true
	r.tokens[tokenID] = rec
	return true, nil
}

func (r *MemoryRepository) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.tokens {
		if rec.FamilyID == familyID && !rec.Revoked {
			rec.Revoked = true
			r.tokens[id] = rec
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListFamily(_ context.Context, familyID string) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chain []models.RefreshToken
	for _, rec := range r.tokens {
		if rec.FamilyID == familyID {
			rec.ReplacedBy = cloneString(rec.ReplacedBy)
			chain = append(chain, rec)
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		if chain[i].IssuedAt.Equal(chain[j].IssuedAt) {
			return chain[i].TokenID < chain[j].TokenID
		}
		return chain[i].IssuedAt.Before(chain[j].IssuedAt)
	})
	return chain, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.tokens {
		if rec.Revoked && rec.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			n++
		}
	}
	// successors that were swept leave a dangling link, as ON DELETE SET NULL does
	for id, rec := range r.tokens {
		if rec.ReplacedBy != nil {
			if _, ok := r.tokens[*rec.ReplacedBy]; !ok {
				rec.ReplacedBy = nil
				r.tokens[id] = rec
			}
		}
	}
	return n, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
