package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabels_UnmatchedAndSkip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics("/metrics"))
	r.GET("/api/v1/orders/:id", func(c *gin.Context) { c.String(http.StatusOK, "order") })
	r.GET("/api/v1/orders", func(c *gin.Context) { c.Status(http.StatusNotModified) })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "# metrics") })

	orderLbl := httpReqs.WithLabelValues("GET", "/api/v1/orders/:id", "200")
	listLbl := httpReqs.WithLabelValues("GET", "/api/v1/orders", "304")
	missLbl := httpReqs.WithLabelValues("GET", unmatchedPath, "404")
	metricsLbl := httpReqs.WithLabelValues("GET", "/metrics", "200")
	baseOrder, baseList, baseMiss, baseMetrics := testutil.ToFloat64(orderLbl), testutil.ToFloat64(listLbl),
		testutil.ToFloat64(missLbl), testutil.ToFloat64(metricsLbl)

	for _, p := range []string{"/api/v1/orders/a", "/api/v1/orders/b", "/api/v1/orders", "/wp-login.php", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(orderLbl); got != baseOrder+2 {
		t.Fatalf("order route counter = %v; want %v (ids must collapse into the route)", got, baseOrder+2)
	}
	if got := testutil.ToFloat64(listLbl); got != baseList+1 {
		t.Fatalf("304 counter = %v; want %v", got, baseList+1)
	}
	if got := testutil.ToFloat64(missLbl); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(metricsLbl); got != baseMetrics {
		t.Fatalf("skipped route was counted")
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
