package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

var stripeTracer = otel.Tracer("diagnostic.internal.payments.stripe")

// IntentParams describes a card charge to authorize.
type IntentParams struct {
	AmountCents int64
	Email       string
}

const metadataEmail = "email"

// Intent is the subset of a Stripe PaymentIntent the checkout flow needs.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// StripeIntentService creates and retrieves Stripe PaymentIntents over the REST API.
type StripeIntentService struct {
	secretKey  string
	currency   string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// NewStripeIntentService creates a gateway client charging in currency (lowercase ISO code).
func NewStripeIntentService(secretKey, currency string, logger *logging.Logger) *StripeIntentService {
	if logger == nil {
		logger = logging.Default()
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}
	return &StripeIntentService{
		secretKey:  secretKey,
		currency:   currency,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeIntentService) WithBaseURL(baseURL string) *StripeIntentService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun enables dry-run mode (returns fake intents without calling Stripe).
func (s *StripeIntentService) WithDryRun(enabled bool) *StripeIntentService {
	s.dryRun = enabled
	return s
}

// CreateIntent creates a card-only PaymentIntent and returns its client secret.
func (s *StripeIntentService) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("diagnostic.amount_cents", params.AmountCents),
		attribute.String("diagnostic.currency", s.currency),
	)

	if s.dryRun {
		fakeID := "pi_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("stripe dry run: skipping payment intent creation", "amount_cents", params.AmountCents)
		return &Intent{
			ID:           fakeID,
			ClientSecret: fakeID + "_secret_dryrun",
			Amount:       params.AmountCents,
			Currency:     s.currency,
			Status:       "requires_payment_method",
			Metadata:     map[string]string{metadataEmail: params.Email},
		}, nil
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", s.currency)
	form.Add("payment_method_types[]", "card")
	if params.Email != "" {
		form.Set("receipt_email", params.Email)
		form.Set("metadata["+metadataEmail+"]", params.Email)
	}

	intent, err := s.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if intent.ClientSecret == "" {
		err := fmt.Errorf("%w: stripe response missing client secret", ErrGateway)
		span.RecordError(err)
		return nil, err
	}
	return intent, nil
}

// RetrieveIntent loads a PaymentIntent so a commit can be checked against the real charge.
func (s *StripeIntentService) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.retrieve_payment_intent")
	defer span.End()
	span.SetAttributes(attribute.String("diagnostic.intent_id", id))

	intent, err := s.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return intent, nil
}

func (s *StripeIntentService) do(ctx context.Context, method, path string, body io.Reader) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe http: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := readStripeError(resp.Body)
		s.logger.Warn("stripe api error", "status", resp.StatusCode, "path", path, "detail", detail)
		return nil, fmt.Errorf("%w: stripe api status %d", ErrGateway, resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("%w: stripe decode: %v", ErrGateway, err)
	}
	return &intent, nil
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// readStripeError extracts the message from a Stripe error body, falling back to the raw body.
func readStripeError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "unknown error"
	}
	var parsed stripeErrorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Type + ": " + parsed.Error.Message
	}
	var buf bytes.Buffer
	if json.Compact(&buf, data) == nil {
		return buf.String()
	}
	return string(data)
}
