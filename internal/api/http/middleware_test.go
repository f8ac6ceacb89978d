package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/car-marketplace/internal/observability"
	apperrors "github.com/spec-kit/car-marketplace/pkg/util/errorutil"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, body io.Reader) errorBody {
	t.Helper()
	var out errorBody
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out
}

func newTestApp(logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	app.Get("/validation", func(c *fiber.Ctx) error {
		return apperrors.NewValidationError("invalid listing", map[string]any{"year": "too old"})
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("boom")
	})
	app.Get("/deadline", func(c *fiber.Ctx) error {
		return context.DeadlineExceeded
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestErrorMiddlewareRendersDomainErrors(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(zap.NewNop(), metrics)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/validation", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeError(t, resp.Body)
	if body.Error.Code != "VALIDATION_FAILED" || body.Error.Details["year"] != "too old" {
		t.Fatalf("body = %+v", body)
	}
	if resp.Header.Get(observability.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if got := metrics.Snapshot().Errors["/validation|GET|VALIDATION_FAILED"]; got != 1 {
		t.Errorf("error counter = %d, want 1", got)
	}
}

func TestErrorMiddlewareMapsFiberAndDeadlineErrors(t *testing.T) {
	app := newTestApp(zap.NewNop(), observability.NewMetrics())

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/missing", fiber.StatusNotFound, "NOT_FOUND"},
		{"/deadline", fiber.StatusGatewayTimeout, "TIMEOUT"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if resp.StatusCode != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.path, resp.StatusCode, tc.status)
		}
		if body := decodeError(t, resp.Body); body.Error.Code != tc.code {
			t.Errorf("%s: code = %q, want %q", tc.path, body.Error.Code, tc.code)
		}
	}
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := newTestApp(zap.New(core), observability.NewMetrics())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/panic", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := decodeError(t, resp.Body); body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("code = %q", body.Error.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic was not logged")
	}
	if logs.FilterMessage("request failed").Len() != 1 {
		t.Error("5xx was not logged")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	app := newTestApp(zap.NewNop(), observability.NewMetrics())
	req := httptest.NewRequest(fiber.MethodGet, "/ok", nil)
	req.Header.Set(observability.RequestIDHeader, "req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(observability.RequestIDHeader); got != "req-123" {
		t.Fatalf("request id = %q, want req-123", got)
	}
}
