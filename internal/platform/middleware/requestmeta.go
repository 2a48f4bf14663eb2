package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
)

// RequestMeta is the caller information stamped on audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFromContext returns the stored metadata, or the zero value for
// work that did not originate from an HTTP request (CLI seeding, tests).
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}

// RequestMetadata copies client IP, user agent and request id onto the
// request context so services can audit without seeing echo.
func RequestMetadata() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid, _ := c.Get("request_id").(string)
			ctx := WithRequestMeta(req.Context(), RequestMeta{
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
				RequestID: rid,
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
