package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/http/handlers"
	"github.com/tbourn/payroll-approval-bot/internal/http/middleware"
	"github.com/tbourn/payroll-approval-bot/internal/repo"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

type nopQueue struct{ n int }

func (q *nopQueue) Enqueue(domain.Inbound) error { q.n++; return nil }

type nopSweeper struct{}

func (nopSweeper) RunOnce(context.Context) (services.SweepReport, error) {
	return services.SweepReport{}, nil
}

type nopReconciler struct{}

func (nopReconciler) Reconcile(context.Context) int { return 0 }

func newStore(t *testing.T) *repo.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "router.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo.NewStore(db, 36*time.Hour)
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *nopQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newStore(t)
	q := &nopQueue{}
	r := gin.New()
	RegisterRoutes(r, Deps{
		Callback: handlers.NewCallback(handlers.CallbackConfig{Confirmation: "abc", Secret: "s"}, store, nil, q),
		Admin:    handlers.NewAdmin(store, services.NewImporter(store), nopSweeper{}, nopReconciler{}),
	}, cfg)
	return r, q
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		AdminToken:  "adm",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "payroll_http_requests_total") {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/health", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CallbackMounted(t *testing.T) {
	r, q := newRouter(t, baseConfig())
	body := `{"type":"message_new","event_id":"r1","secret":"s","object":{"message":{"from_id":123456789,"peer_id":123456789,"text":"Начать"}}}`
	req := httptest.NewRequest(http.MethodPost, CallbackPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "ok" || q.n != 1 {
		t.Fatalf("callback = %d %q queued=%d", w.Code, w.Body.String(), q.n)
	}
}

func TestRegisterRoutes_AdminGuardAndGzip(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recipients/123456789/payments", nil)
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/recipients/123456789/payments", nil)
	req.Header.Set(middleware.HeaderAdminToken, "adm")
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with token = %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("admin responses must be gzip-compressed")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("admin responses must not be cached")
	}
}

func TestRegisterRoutes_AdminDisabledWithoutToken(t *testing.T) {
	cfg := baseConfig()
	cfg.AdminToken = ""
	r, _ := newRouter(t, cfg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sweeps", nil)
	req.Header.Set(middleware.HeaderAdminToken, "")
	if w := serve(r, req); w.Code != http.StatusNotFound {
		t.Fatalf("disabled admin API = %d", w.Code)
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://admin.example.com"}}
	r, _ := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	if got := serve(r, req).Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Fatalf("allowed origin echo = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if w := serve(r, req); w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed")
	}

	open, _ := newRouter(t, baseConfig())
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://any.example.com")
	if got := serve(open, req).Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all origin = %q", got)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	groupWithPrefix(r, "/api").GET("/y", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("/x = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/y", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("/api/y = %d", w.Code)
	}
}
