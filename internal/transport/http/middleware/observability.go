package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sakashimaa/banobox-orders/pkg/metrics"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// NewRequestID echoes the caller's X-Request-ID or generates one.
func NewRequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals("requestId", id)
		c.Set(HeaderRequestID, id)
		return c.Next()
	}
}

// NewRequestMetrics records count and latency per matched route.
func NewRequestMetrics(m *metrics.Metrics, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		elapsed := time.Since(start)
		m.ObserveRequest(route, strconv.Itoa(status), float64(elapsed.Microseconds())/1000)

		requestID, _ := c.Locals("requestId").(string)
		mylogger.Debug(
			c.UserContext(),
			logger,
			"http request",
			zap.String("method", c.Method()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", requestID),
		)

		return err
	}
}

// NewRequestTimeout bounds the storage work of one request. It must run after
// middleware that replaces the user context.
func NewRequestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}
