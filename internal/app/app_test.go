package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazear/census2csv/internal/config"
	"github.com/lazear/census2csv/internal/shared/testutil"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Telemetry.Enabled = true
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.OTelProviders.Shutdown(context.Background())
	})
	return app
}

func convertRequest(t *testing.T, body map[string]interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNew(t *testing.T) {
	app := newTestApp(t, testConfig())

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Converter)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, ":8080", app.Server.Addr)
	assert.Equal(t, 2*time.Minute, app.Server.WriteTimeout)
}

func TestNew_InvalidProcessingMode(t *testing.T) {
	cfg := testConfig()
	cfg.Processing.Mode = "gene"
	logger, _ := testutil.NewTestLogger(t)

	_, err := New(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid processing configuration")
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t, testConfig())

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantBody   string
	}{
		{
			name:       "health",
			req:        httptest.NewRequest(http.MethodGet, "/api/health", nil),
			wantStatus: http.StatusOK,
			wantBody:   `"status":"ok"`,
		},
		{
			name:       "version",
			req:        httptest.NewRequest(http.MethodGet, "/api/version", nil),
			wantStatus: http.StatusOK,
			wantBody:   config.AppVersion,
		},
		{
			name:       "example filter",
			req:        httptest.NewRequest(http.MethodGet, "/api/v1/filters/example", nil),
			wantStatus: http.StatusOK,
			wantBody:   "ExcludeReverse",
		},
		{
			name:       "convert",
			req:        convertRequest(t, map[string]interface{}{"census": testutil.SampleCensus()}),
			wantStatus: http.StatusOK,
			wantBody:   "sp|P1|ONE,Protein one; isoform 2,3,2,115,225",
		},
		{
			name:       "unknown route",
			req:        httptest.NewRequest(http.MethodGet, "/api/v2/convert", nil),
			wantStatus: http.StatusNotFound,
			wantBody:   "/errors/not-found",
		},
		{
			name:       "wrong method",
			req:        httptest.NewRequest(http.MethodGet, "/api/v1/convert", nil),
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name: "form upload rejected",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/v1/convert", strings.NewReader("census=x"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			}(),
			wantStatus: http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, tt.req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, convertRequest(t, map[string]interface{}{"census": testutil.SampleCensus()}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	scrape := rec.Body.String()
	assert.Contains(t, scrape, "census_files_processed_total")
	assert.Contains(t, scrape, "census_rows_written_total")
	assert.Contains(t, scrape, `route="/api/v1/convert"`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.Enabled = false
	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.1, Burst: 1}
	app := newTestApp(t, cfg)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 128
	app := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, convertRequest(t, map[string]interface{}{"census": testutil.SampleCensus()}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/payload-too-large")
}

func TestServeAndStop(t *testing.T) {
	app := newTestApp(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Serve(ctx, ln, cancel))

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", ln.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"files_converted":0`)

	require.NoError(t, app.Stop(context.Background()))
	assert.NoError(t, ctx.Err(), "a clean shutdown must not cancel the serve context")

	_, err = http.Get(fmt.Sprintf("http://%s/api/health", ln.Addr()))
	assert.Error(t, err)
}
