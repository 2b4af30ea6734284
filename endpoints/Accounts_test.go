package endpoints_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maptrack/bank-api/banks"
	"github.com/maptrack/bank-api/endpoints"
	"github.com/maptrack/bank-api/kernel"
	"github.com/maptrack/bank-api/middleware"
	"github.com/maptrack/bank-api/models"
)

// stubBank serves the three provider endpoints; consents flip to approved
// via the approved flag.
type stubBank struct {
	mu       sync.Mutex
	approved bool

	accountsStatus int
	accountsBody   string
}

func (sb *stubBank) isApproved() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.approved
}

func (sb *stubBank) setApproved(v bool) {
	sb.mu.Lock()
	sb.approved = v
	sb.mu.Unlock()
}

func (sb *stubBank) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/auth/bank-token":
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	case r.URL.Path == "/account-consents/request":
		if sb.isApproved() {
			_, _ = w.Write([]byte(`{"consent_id":"c-1","status":"approved"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	case strings.HasPrefix(r.URL.Path, "/account-consents/"):
		if sb.isApproved() {
			_, _ = w.Write([]byte(`{"data":{"status":"approved","consentId":"c-1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"status":"pending"}}`))
	case r.URL.Path == "/accounts":
		status := sb.accountsStatus
		if status == 0 {
			status = http.StatusOK
		}
		body := sb.accountsBody
		if body == "" {
			body = `{"accounts":[]}`
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestAPI(t *testing.T, sb *stubBank) (*gin.Engine, *kernel.AppRuntime) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(sb.handler))
	t.Cleanup(srv.Close)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BankToken{}, &models.BankConsent{}))

	user := models.User{Email: "dev@maptrack.local"}
	require.NoError(t, db.Create(&user).Error)

	art := &kernel.AppRuntime{
		DatabaseClient: db,
		Diagnostic: &kernel.AppDiagnostic{
			Tracer: otel.Tracer("test-tracer"),
			Meter:  otel.Meter("test-meter"),
		},
	}
	art.BankService = banks.NewService(banks.Config{
		DB:           db,
		Registry:     banks.Registry{"vbank": srv.URL},
		ClientID:     "team239",
		ClientSecret: "s3cret",
		AppName:      "MapTrack",
		Timeout:      5 * time.Second,
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TracerMiddleware(art))
	r.Use(func(c *gin.Context) {
		rt := c.MustGet("rt").(*kernel.RequestRuntime)
		rt.User = &user
		c.Next()
	})

	group := r.Group("/banks")
	group.POST("/:bank/token", endpoints.BankToken)
	group.GET("/:bank/accounts", endpoints.Accounts)
	group.GET("/:bank/consent/:consent_id", endpoints.ConsentStatus)

	return r, art
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAccountsPendingThenApproved(t *testing.T) {
	sb := &stubBank{}
	r, _ := newTestAPI(t, sb)

	w := get(r, "/banks/vbank/accounts")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pending")
	require.Contains(t, w.Body.String(), `"bank":"vbank"`)

	sb.setApproved(true)
	sb.mu.Lock()
	sb.accountsBody = `{"accounts":[{"accountId":"a-1"}]}`
	sb.mu.Unlock()

	w = get(r, "/banks/vbank/accounts")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"accounts":[{"accountId":"a-1"}]}`, w.Body.String())
}

func TestAccountsUnknownBank(t *testing.T) {
	r, _ := newTestAPI(t, &stubBank{})

	w := get(r, "/banks/nope/accounts")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unknown bank")
}

func TestAccountsRelaysProviderError(t *testing.T) {
	sb := &stubBank{
		approved:       true,
		accountsStatus: http.StatusInternalServerError,
		accountsBody:   `{"detail":"core banking is down"}`,
	}
	r, _ := newTestAPI(t, sb)

	w := get(r, "/banks/vbank/accounts")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "core banking is down")
}

func TestAccountsUnavailableBank(t *testing.T) {
	sb := &stubBank{}
	r, art := newTestAPI(t, sb)

	// Re-point the registry at a dead endpoint.
	art.BankService = banks.NewService(banks.Config{
		DB:           art.DatabaseClient,
		Registry:     banks.Registry{"vbank": "http://127.0.0.1:1"},
		ClientID:     "team239",
		ClientSecret: "s3cret",
		AppName:      "MapTrack",
		Timeout:      500 * time.Millisecond,
	})

	w := get(r, "/banks/vbank/accounts")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBankTokenEndpoint(t *testing.T) {
	r, _ := newTestAPI(t, &stubBank{})

	req := httptest.NewRequest(http.MethodPost, "/banks/vbank/token", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"access_token":"tok"`)
	require.Contains(t, w.Body.String(), `"bank":"vbank"`)
}

func TestConsentStatusEndpoint(t *testing.T) {
	sb := &stubBank{approved: true}
	r, _ := newTestAPI(t, sb)

	w := get(r, "/banks/vbank/consent/c-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"status":"approved","consentId":"c-1"}}`, w.Body.String())
}
