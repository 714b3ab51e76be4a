package results

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for test result storage.
type Repository interface {
	Create(ctx context.Context, result *TestResult) error
	Get(ctx context.Context, id string) (*TestResult, error)
	ListByEmail(ctx context.Context, email string) ([]*TestResult, error)
	AttachReport(ctx context.Context, id, report string) (*TestResult, error)
	Delete(ctx context.Context, id string) error
}

type InMemoryRepository struct {
	mu      sync.RWMutex
	results map[string]*TestResult
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{results: make(map[string]*TestResult)}
}

// Create stores the result, filling id, status and timestamps when unset.
func (r *InMemoryRepository) Create(ctx context.Context, result *TestResult) error {
	prepare(result, time.Now().UTC())
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *result
	r.results[result.ID] = &c
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*TestResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	c := *result
	return &c, nil
}

func (r *InMemoryRepository) ListByEmail(ctx context.Context, email string) ([]*TestResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*TestResult
	for _, result := range r.results {
		if result.Email == email {
			c := *result
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) AttachReport(ctx context.Context, id, report string) (*TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	if result.Status == StatusCanceled {
		return nil, ErrResultCanceled
	}
	result.Report = report
	result.Status = StatusComplete
	result.UpdatedAt = time.Now().UTC()
	c := *result
	return &c, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[id]; !ok {
		return ErrResultNotFound
	}
	delete(r.results, id)
	return nil
}

func prepare(result *TestResult, now time.Time) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.Status == "" {
		result.Status = StatusPending
	}
	result.Email = strings.ToLower(strings.TrimSpace(result.Email))
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = result.CreatedAt
}
