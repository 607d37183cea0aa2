package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareReleasesInFlightOnPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.middleware())
	router.GET("/boom", func(*gin.Context) {
		panic("handler failure")
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
	if value := testutil.ToFloat64(metrics.inFlight); value != 0 {
		t.Fatalf("expected in-flight gauge to return to zero, got %v", value)
	}
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(metrics.middleware())
	router.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	if value := testutil.ToFloat64(metrics.requests.WithLabelValues("/ok", http.MethodGet, "200")); value != 1 {
		t.Fatalf("expected one counted request, got %v", value)
	}
	if value := testutil.ToFloat64(metrics.requests.WithLabelValues(routeLabelUnmatched, http.MethodGet, "404")); value != 1 {
		t.Fatalf("expected unmatched request to be counted, got %v", value)
	}
	if value := testutil.ToFloat64(metrics.inFlight); value != 0 {
		t.Fatalf("expected in-flight gauge at zero, got %v", value)
	}
}
