package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/certmgmt/backend/internal/metrics"
	"github.com/certmgmt/backend/internal/middleware"
)

func newTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{CorsOrigins: "*", MaxBodyBytes: 1024}, metrics.New(), logger)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	s.App().Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	if _, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ping", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, metricsPath, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cert_management_http_request_duration_seconds") {
		t.Errorf("expected HTTP latency metric in output")
	}
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	s := newTestServer()
	s.App().Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "missing")
	})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.TraceIDHeader) == "" {
		t.Error("expected trace id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"NOT_FOUND"`) {
		t.Errorf("expected NOT_FOUND envelope, got %s", string(body))
	}
}
