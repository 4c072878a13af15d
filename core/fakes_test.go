package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// memUserRepository is an in-memory UserRepository with the same uniqueness
// contract as PgUserRepository.
type memUserRepository struct {
	mu      sync.Mutex
	nextID  int64
	byName  map[string]UserRecord
	finds   int
	findErr error
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{byName: map[string]UserRecord{}}
}

func (r *memUserRepository) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &rec, nil
}

func (r *memUserRepository) Create(_ context.Context, rec *UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[rec.Username]; ok {
		return ErrUsernameTaken
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	r.byName[rec.Username] = *rec
	return nil
}

func (r *memUserRepository) List(_ context.Context) ([]UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UserRecord, 0, len(r.byName))
	for _, rec := range r.byName {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepository) findCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds
}

func (r *memUserRepository) remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, username)
}

func testHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost)
}
