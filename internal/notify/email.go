package notify

import (
	"context"
	netmail "net/mail"
	"strings"

	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

const defaultFromName = "Diagnostic Center"

// EmailSender delivers one rendered patient email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered patient email. Category and RefID are attached
// as provider tags so delivery events can be traced back to the result.
type EmailMessage struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	ReplyTo  string
	Category string
	RefID    string
}

// Sender is the lab identity used for From and the default Reply-To.
type Sender struct {
	Email   string
	Name    string
	ReplyTo string
}

func (s Sender) withDefaults() Sender {
	s.Email = strings.TrimSpace(s.Email)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = defaultFromName
	}
	s.ReplyTo = strings.TrimSpace(s.ReplyTo)
	return s
}

// address formats the From header with RFC 5322 quoting of the display name.
func (s Sender) address() string {
	return (&netmail.Address{Name: s.Name, Address: s.Email}).String()
}

func (s Sender) replyTo(msg EmailMessage) string {
	if msg.ReplyTo != "" {
		return msg.ReplyTo
	}
	return s.ReplyTo
}

// StubEmailSender logs instead of sending; used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("email disabled, dropping message", "to", msg.To, "category", msg.Category, "ref_id", msg.RefID)
	return nil
}
