package observability

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type correlationIDKey struct{}

// WithCorrelationID tags ctx so that logs of the request, and of the
// wake-ups it publishes, can be joined.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	correlationID, ok := ctx.Value(correlationIDKey{}).(string)
	return correlationID, ok && correlationID != ""
}

func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		return logger.With(zap.String("correlationId", correlationID))
	}
	return logger
}

// CorrelationMiddleware stores the X-Request-ID header (or a fresh uuid) in
// the request user context and echoes it on the response.
func CorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.SetUserContext(WithCorrelationID(c.UserContext(), correlationID))
		c.Set(fiber.HeaderXRequestID, correlationID)
		return c.Next()
	}
}
