package bookings

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

var bookingsTracer = otel.Tracer("diagnostic.internal.bookings")

// TestLookup resolves the catalog entry a booking references.
type TestLookup interface {
	Get(ctx context.Context, id string) (*catalog.Test, error)
}

// Service creates and cancels reservations.
type Service struct {
	repo   Repository
	tests  TestLookup
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Repository, tests TestLookup, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if tests == nil {
		panic("bookings: test lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, tests: tests, logger: logger}
}

// Book reserves a test for email. The test must exist.
func (s *Service) Book(ctx context.Context, email string, req *CreateBookingRequest) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("diagnostic.test_id", req.TestID))

	test, err := s.tests.Get(ctx, req.TestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	booking := &Booking{
		Email:    email,
		TestID:   test.ID,
		TestName: test.Name,
		Price:    test.Price,
		Date:     req.Date,
	}
	if booking.Date == "" {
		booking.Date = test.Date
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("booking created", "booking_id", booking.ID, "test_id", booking.TestID)
	return booking, nil
}

// ListForOwner returns the caller's bookings, newest first.
func (s *Service) ListForOwner(ctx context.Context, email string) ([]*Booking, error) {
	return s.repo.ListByEmail(ctx, email)
}

// Cancel cancels a pending booking owned by email.
func (s *Service) Cancel(ctx context.Context, email, id string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("diagnostic.booking_id", id))

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !strings.EqualFold(existing.Email, strings.TrimSpace(email)) {
		span.RecordError(ErrNotOwner)
		return nil, ErrNotOwner
	}
	booking, err := s.repo.Cancel(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrAlreadyCanceled) {
			span.RecordError(err)
		}
		return nil, err
	}
	s.logger.Info("booking canceled", "booking_id", id)
	return booking, nil
}
