package main

import (
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/diagnostic-booking-api/internal/config"
	"github.com/wolfman30/diagnostic-booking-api/internal/notify"
	"github.com/wolfman30/diagnostic-booking-api/internal/payments"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

func TestBuildStoresMemory(t *testing.T) {
	st := buildStores(nil, logging.NewWithWriter("error", io.Discard))
	if st.users == nil || st.catalog == nil || st.bookings == nil || st.results == nil || st.ledger == nil {
		t.Fatalf("expected every repository wired, got %+v", st)
	}
	if st.outbox != nil {
		t.Fatal("memory mode has no outbox")
	}
	if _, ok := st.ledger.(*payments.MemoryLedger); !ok {
		t.Fatalf("expected memory ledger, got %T", st.ledger)
	}
}

func TestBuildEmailSenderSelection(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	ses := sesv2.NewFromConfig(aws.Config{Region: "us-east-1"})

	sender := buildEmailSender(&appconfig.Config{SendGridAPIKey: "k", SendGridFromEmail: "lab@example.com"}, ses, logger)
	if _, ok := sender.(*notify.SendGridSender); !ok {
		t.Fatalf("expected sendgrid sender, got %T", sender)
	}
	sender = buildEmailSender(&appconfig.Config{SESFromEmail: "lab@example.com"}, ses, logger)
	if _, ok := sender.(*notify.SESSender); !ok {
		t.Fatalf("expected ses sender, got %T", sender)
	}
	sender = buildEmailSender(&appconfig.Config{}, ses, logger)
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender, got %T", sender)
	}
}

func TestBuildVelocityDisabledWithoutRedis(t *testing.T) {
	if v := buildVelocity(nil, &appconfig.Config{IntentVelocityMax: 3}, nil); v != nil {
		t.Fatal("expected nil checker without redis")
	}
}
