package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Used by the "memory"
// storage backend and by service tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	login map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]models.User),
		login: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, email := strings.ToLower(user.UserName), strings.ToLower(user.Email)
	if _, ok := r.login[name]; ok {
		return nil, common.ErrUsernameTaken
	}
	if _, ok := r.login[email]; ok {
		return nil, common.ErrUsernameTaken
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()

	r.byID[user.ID] = *user
	r.login[name] = user.ID
	r.login[email] = user.ID
	return user, nil
}

func (r *MemoryRepository) GetByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.login[strings.ToLower(login)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

// SetActive flips the account flag. Deactivation is a CRUD-layer concern; the
// in-memory backend exposes it so the auth flows can be exercised.
func (r *MemoryRepository) SetActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.IsActive = active
		r.byID[id] = u
	}
}

// SetRole changes a user's role.
func (r *MemoryRepository) SetRole(id, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Role = role
		r.byID[id] = u
	}
}
