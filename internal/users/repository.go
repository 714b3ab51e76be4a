package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
)

// Repository defines the interface for user storage
type Repository interface {
	Create(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	SetRole(ctx context.Context, id string, role auth.Role) (*User, error)
	SetStatus(ctx context.Context, id string, status Status) (*User, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository keeps users in a map keyed by id
type InMemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Create registers a user with the default role and status.
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[req.Email]; exists {
		return nil, ErrEmailTaken
	}
	user := &User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Avatar:    req.Avatar,
		Role:      auth.RoleUser,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return copyUser(user), nil
}

// Put stores a fully formed user, replacing any existing record. Used for seeding.
func (r *InMemoryRepository) Put(user User) {
	user.Email = NormalizeEmail(user.Email)
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = &user
	r.byEmail[user.Email] = user.ID
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(r.users[id]), nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) SetRole(ctx context.Context, id string, role auth.Role) (*User, error) {
	return r.mutate(id, func(u *User) { u.Role = role })
}

func (r *InMemoryRepository) SetStatus(ctx context.Context, id string, status Status) (*User, error) {
	return r.mutate(id, func(u *User) { u.Status = status })
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.users, id)
	return nil
}

func (r *InMemoryRepository) mutate(id string, fn func(*User)) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	fn(user)
	return copyUser(user), nil
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
