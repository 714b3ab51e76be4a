package catalog

import (
	"strings"
	"time"
)

// Test is a bookable diagnostic test with a finite number of slots.
type Test struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image,omitempty"`
	Price       float64   `json:"price"`
	Slot        int       `json:"slot"`
	Date        string    `json:"date,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const defaultStatus = "available"

// CreateTestRequest is the admin payload for a new test.
type CreateTestRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image"`
	Price       float64 `json:"price"`
	Slot        int     `json:"slot"`
	Date        string  `json:"date"`
	Status      string  `json:"status"`
}

func (r *CreateTestRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrMissingName
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}
	if r.Slot < 0 {
		return ErrNegativeSlot
	}
	if strings.TrimSpace(r.Status) == "" {
		r.Status = defaultStatus
	}
	return nil
}

// UpdateTestRequest is a partial update; nil fields are left untouched.
type UpdateTestRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	ImageURL    *string  `json:"image"`
	Price       *float64 `json:"price"`
	Slot        *int     `json:"slot"`
	Date        *string  `json:"date"`
	Status      *string  `json:"status"`
}

func (r *UpdateTestRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return ErrMissingName
		}
		r.Name = &name
	}
	if r.Price != nil && *r.Price < 0 {
		return ErrInvalidPrice
	}
	if r.Slot != nil && *r.Slot < 0 {
		return ErrNegativeSlot
	}
	return nil
}

// apply copies the non-nil fields onto t.
func (r *UpdateTestRequest) apply(t *Test) {
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.ImageURL != nil {
		t.ImageURL = *r.ImageURL
	}
	if r.Price != nil {
		t.Price = *r.Price
	}
	if r.Slot != nil {
		t.Slot = *r.Slot
	}
	if r.Date != nil {
		t.Date = *r.Date
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
}
