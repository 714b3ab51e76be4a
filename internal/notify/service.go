package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/diagnostic-booking-api/internal/events"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// EventRecorder queues an event for asynchronous delivery.
type EventRecorder interface {
	Insert(ctx context.Context, aggregateID string, eventType string, payload any) (uuid.UUID, error)
}

// Service sends patient notifications.
type Service struct {
	email    EmailSender
	recorder EventRecorder
	siteURL  string
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a notification service. email may be nil to disable mail.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithRecorder also queues result.report_ready.v1 for every notice.
func (s *Service) WithRecorder(recorder EventRecorder) *Service {
	s.recorder = recorder
	return s
}

// WithSiteURL sets the link included in patient emails.
func (s *Service) WithSiteURL(url string) *Service {
	s.siteURL = strings.TrimRight(strings.TrimSpace(url), "/")
	return s
}

// NotifyReportReady emails the patient that their report is available.
func (s *Service) NotifyReportReady(ctx context.Context, result *results.TestResult) error {
	if result == nil || result.Email == "" {
		return fmt.Errorf("notify: result without recipient")
	}

	if s.recorder != nil {
		evt := events.ReportReadyV1{
			EventID:    uuid.New().String(),
			ResultID:   result.ID,
			Email:      result.Email,
			TestID:     result.TestID,
			OccurredAt: s.now(),
		}
		if _, err := s.recorder.Insert(ctx, result.ID, events.TypeReportReady, evt); err != nil {
			s.logger.Error("notify: failed to queue report event", "error", err, "result_id", result.ID)
		}
	}

	if s.email == nil {
		s.logger.Debug("notify: email not configured, skipping report notice", "result_id", result.ID)
		return nil
	}

	msg, err := ReportReadyMessage(result, s.siteURL)
	if err != nil {
		return err
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: report ready email: %w", err)
	}
	s.logger.Info("notify: report ready email sent", "result_id", result.ID)
	return nil
}

var _ results.ReportNotifier = (*Service)(nil)
