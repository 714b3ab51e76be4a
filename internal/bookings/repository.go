package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository provides persistence for bookings.
type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	ListByEmail(ctx context.Context, email string) ([]*Booking, error)
	// Cancel moves a pending booking to Canceled.
	Cancel(ctx context.Context, id string) (*Booking, error)
}

type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bookings: make(map[string]*Booking)}
}

func (r *InMemoryRepository) Create(ctx context.Context, booking *Booking) error {
	prepare(booking, time.Now().UTC())
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *booking
	r.bookings[booking.ID] = &c
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (r *InMemoryRepository) ListByEmail(ctx context.Context, email string) ([]*Booking, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.bookings {
		if b.Email == email {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) Cancel(ctx context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status == StatusCanceled {
		return nil, ErrAlreadyCanceled
	}
	b.Status = StatusCanceled
	b.UpdatedAt = time.Now().UTC()
	c := *b
	return &c, nil
}

func prepare(b *Booking, now time.Time) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt
}
