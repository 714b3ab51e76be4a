package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// VelocityChecker caps how many payment intents one caller may open per window.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	MaxIntentsPerEmail int
	IntentWindow       time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxIntentsPerEmail: 10,
		IntentWindow:       time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
}

// NewVelocityChecker returns nil when redisClient is nil; a nil checker allows everything.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if redisClient == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultVelocityConfig()
	if config.MaxIntentsPerEmail <= 0 {
		config.MaxIntentsPerEmail = defaults.MaxIntentsPerEmail
	}
	if config.IntentWindow <= 0 {
		config.IntentWindow = defaults.IntentWindow
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckIntent counts one intent attempt for email.
func (v *VelocityChecker) CheckIntent(ctx context.Context, email string) (*VelocityResult, error) {
	if v == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := stripeTracer.Start(ctx, "velocity.check_intent")
	defer span.End()

	key := intentVelocityKey(email)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.IntentWindow)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open: a Redis outage must not block checkout.
		return &VelocityResult{Allowed: true}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxIntentsPerEmail,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxIntentsPerEmail,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		v.logger.Warn("payment intent velocity exceeded", "count", count, "max", v.config.MaxIntentsPerEmail)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// Reset clears the intent counter for email (admin use).
func (v *VelocityChecker) Reset(ctx context.Context, email string) error {
	if v == nil {
		return nil
	}
	return v.redis.Del(ctx, intentVelocityKey(email)).Err()
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	// Set expiry only on first increment
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

func intentVelocityKey(email string) string {
	return fmt.Sprintf("velocity:intent:%s", strings.ToLower(strings.TrimSpace(email)))
}
