package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/fitprogram-backend/internal/http/handlers"
	"github.com/yungbote/fitprogram-backend/internal/observability"
	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		deps   map[string]httpH.Pinger
		status int
		body   string
	}{
		{
			name:   "healthy",
			deps:   map[string]httpH.Pinger{"db": pingFunc(func(context.Context) error { return nil })},
			status: nethttp.StatusOK,
			body:   "ok",
		},
		{
			name:   "db down",
			deps:   map[string]httpH.Pinger{"db": pingFunc(func(context.Context) error { return errors.New("connection refused") })},
			status: nethttp.StatusServiceUnavailable,
			body:   "connection refused",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(RouterConfig{Log: logger.Nop(), HealthHandler: httpH.NewHealthHandler(tc.deps)})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
			if rec.Code != tc.status || !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("want=%d %q got=%d %q", tc.status, tc.body, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewRouter(RouterConfig{Log: logger.Nop()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("metrics disabled: want=404 got=%d", rec.Code)
	}

	r = NewRouter(RouterConfig{Log: logger.Nop(), Metrics: observability.New()})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics enabled: want=200 with go collector, got=%d", rec.Code)
	}
}
