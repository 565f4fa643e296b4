package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// FiberMiddleware creates a span per HTTP request, records the response
// status on it and feeds the request count and duration instruments.
func FiberMiddleware(serviceName string) fiber.Handler {
	tracer := otel.Tracer(serviceName)
	meter := otel.Meter(serviceName)
	propagator := otel.GetTextMapPropagator()

	requestCount, _ := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Number of HTTP requests handled"))
	requestDuration, _ := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("HTTP request duration"))

	return func(c *fiber.Ctx) error {
		start := time.Now()
		ctx := propagator.Extract(c.Context(), &fiberCarrier{c: c})

		spanName := c.Method() + " " + c.Route().Path
		if spanName == " " {
			spanName = c.Method() + " " + c.Path()
		}

		ctx, span := tracer.Start(ctx, spanName,
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.route", c.Route().Path),
				attribute.String("http.user_agent", c.Get("User-Agent")),
				attribute.String("http.remote_addr", c.IP()),
			),
		)
		defer span.End()

		c.Locals("otel.ctx", ctx)
		c.Locals("otel.span", span)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int("http.response_size", len(c.Response().Body())),
		)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if statusCode >= 400 {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		metricAttrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", statusCode),
		)
		requestCount.Add(ctx, 1, metricAttrs)
		requestDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, metricAttrs)

		return err
	}
}

// GetContextFromFiber extracts the request's trace context.
func GetContextFromFiber(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals("otel.ctx").(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// fiberCarrier adapts the Fiber context to propagation.TextMapCarrier.
type fiberCarrier struct {
	c *fiber.Ctx
}

func (fc *fiberCarrier) Get(key string) string {
	return fc.c.Get(key)
}

func (fc *fiberCarrier) Set(key, value string) {
	fc.c.Set(key, value)
}

func (fc *fiberCarrier) Keys() []string {
	keys := make([]string, 0)
	fc.c.Request().Header.VisitAll(func(key, value []byte) {
		keys = append(keys, string(key))
	})
	return keys
}
