package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for test catalog storage.
type Repository interface {
	Create(ctx context.Context, req *CreateTestRequest) (*Test, error)
	Get(ctx context.Context, id string) (*Test, error)
	List(ctx context.Context) ([]*Test, error)
	Update(ctx context.Context, id string, req *UpdateTestRequest) (*Test, error)
	Delete(ctx context.Context, id string) error
}

// SlotCounter adjusts remaining capacity atomically.
type SlotCounter interface {
	// DecrementSlot takes one slot if any remain and returns the new count.
	DecrementSlot(ctx context.Context, id string) (int, error)
	// IncrementSlot gives one slot back and returns the new count.
	IncrementSlot(ctx context.Context, id string) (int, error)
}

// InMemoryRepository is a mutex-guarded catalog used for development and tests.
type InMemoryRepository struct {
	mu    sync.Mutex
	tests map[string]*Test
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tests: make(map[string]*Test),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateTestRequest) (*Test, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := r.now()
	test := &Test{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Slot:        req.Slot,
		Date:        req.Date,
		Status:      req.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.ID] = test
	return copyTest(test), nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	return copyTest(test), nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Test, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, copyTest(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, req *UpdateTestRequest) (*Test, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	req.apply(test)
	test.UpdatedAt = r.now()
	return copyTest(test), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tests[id]; !ok {
		return ErrTestNotFound
	}
	delete(r.tests, id)
	return nil
}

func (r *InMemoryRepository) DecrementSlot(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return 0, ErrTestNotFound
	}
	if test.Slot <= 0 {
		return test.Slot, ErrSlotUnavailable
	}
	test.Slot--
	test.UpdatedAt = r.now()
	return test.Slot, nil
}

func (r *InMemoryRepository) IncrementSlot(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[id]
	if !ok {
		return 0, ErrTestNotFound
	}
	test.Slot++
	test.UpdatedAt = r.now()
	return test.Slot, nil
}

// Put stores a fully formed test, replacing any existing record. Used for seeding.
func (r *InMemoryRepository) Put(test Test) {
	if test.ID == "" {
		test.ID = uuid.New().String()
	}
	if test.CreatedAt.IsZero() {
		test.CreatedAt = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.ID] = &test
}

func copyTest(t *Test) *Test {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
