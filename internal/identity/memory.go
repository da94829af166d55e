package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory implements Store with in-process concurrency safety. Used in tests
// and single-node development setups.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[string]*Identity
	byEmail     map[string]string
	byPhone     map[string]string
	assignments map[string][]RoleAssignment
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[string]*Identity),
		byEmail:     make(map[string]string),
		byPhone:     make(map[string]string),
		assignments: make(map[string][]RoleAssignment),
	}
}

func (s *InMemory) Create(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	email := strings.ToLower(id.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrConflict
	}
	if _, ok := s.byPhone[id.Phone]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now
	cp := *id
	s.byID[id.ID] = &cp
	s.byEmail[email] = id.ID
	s.byPhone[id.Phone] = id.ID
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemory) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.Active = false
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) Assign(ctx context.Context, a RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.IdentityID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.assignments[a.IdentityID] {
		if existing.Active && existing.Role == a.Role && existing.Scope == a.Scope {
			return ErrConflict
		}
	}
	a.Active = true
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.assignments[a.IdentityID] = append(s.assignments[a.IdentityID], a)
	return nil
}

func (s *InMemory) Revoke(ctx context.Context, identityID, role, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.assignments[identityID]
	for i := range list {
		if list[i].Active && list[i].Role == role && list[i].Scope == scope {
			list[i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemory) Assignments(ctx context.Context, identityID string) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleAssignment
	for _, a := range s.assignments[identityID] {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}
