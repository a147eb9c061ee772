package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leafscan/leafscan-api/internal/config"
	apphttp "github.com/leafscan/leafscan-api/internal/http"
	"github.com/leafscan/leafscan-api/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		Port:               0,
		JWTSecret:          "test-secret-key",
		JWTTTLHours:        24,
		BcryptCost:         4,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		AuthRateLimit:      1000,
		AuthRateWindow:     time.Minute,
		MaxBodyBytes:       1 << 20,
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping integration test")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	// bootstrap runs on every start, so running it per test also
	// exercises its idempotency
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema init failed: %v", err)
	}

	if _, err := pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY`); err != nil {
		t.Fatalf("failed to truncate users: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := apphttp.NewRouter(logger, pool, nil, prometheus.NewRegistry(), testConfig())

	return router, pool
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

type authBody struct {
	Message string `json:"message"`
	User    struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Token string `json:"token"`
	Error string `json:"error"`
}

func mustReadJSON(t *testing.T, w *httptest.ResponseRecorder, out *authBody) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func TestAuthIntegration_RegisterThenLogin(t *testing.T) {
	router, _ := setupTestRouter(t)

	// register

	w := doRequest(router, http.MethodPost, "/api/register", `{"name":"Ana","email":"ana@x.com","password":"secret123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("register got status %d, body=%s", w.Code, w.Body.String())
	}

	var reg authBody
	mustReadJSON(t, w, &reg)

	if reg.User.ID != 1 || reg.User.Email != "ana@x.com" || reg.Token == "" {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	// login with the same credentials returns the same id

	w = doRequest(router, http.MethodPost, "/api/login", `{"email":"ana@x.com","password":"secret123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("login got status %d, body=%s", w.Code, w.Body.String())
	}

	var login authBody
	mustReadJSON(t, w, &login)

	if login.User.ID != reg.User.ID {
		t.Fatalf("login id %d differs from register id %d", login.User.ID, reg.User.ID)
	}

	// wrong password

	w = doRequest(router, http.MethodPost, "/api/login", `{"email":"ana@x.com","password":"wrong"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password got status %d, body=%s", w.Code, w.Body.String())
	}

	// unknown email

	w = doRequest(router, http.MethodPost, "/api/login", `{"email":"nobody@x.com","password":"x"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown email got status %d, body=%s", w.Code, w.Body.String())
	}

	// duplicate registration

	w = doRequest(router, http.MethodPost, "/api/register", `{"name":"Ana Again","email":"ana@x.com","password":"other"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register got status %d, body=%s", w.Code, w.Body.String())
	}

	var dup authBody
	mustReadJSON(t, w, &dup)

	if dup.Error != "Email already exists" {
		t.Fatalf("duplicate register got error %q", dup.Error)
	}
}

func TestAuthIntegration_EmailIsCaseSensitive(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/register", `{"name":"Ana","email":"Ana@x.com","password":"secret123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("register got status %d, body=%s", w.Code, w.Body.String())
	}

	// lookup is exact match, a different casing is a different account

	w = doRequest(router, http.MethodPost, "/api/login", `{"email":"ana@x.com","password":"secret123"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("case-variant login got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestAuthIntegration_ConcurrentDuplicateRegistration(t *testing.T) {
	router, _ := setupTestRouter(t)

	const racers = 8

	var wg sync.WaitGroup

	codes := make([]int, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			w := doRequest(router, http.MethodPost, "/api/register", `{"name":"Ana","email":"race@x.com","password":"secret123"}`)

			codes[i] = w.Code
		}(i)
	}

	wg.Wait()

	// exactly one insert wins, the constraint rejects the rest

	wins := 0
	taken := 0

	for _, code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusBadRequest:
			taken++
		default:
			t.Fatalf("unexpected status %d in race", code)
		}
	}

	if wins != 1 {
		t.Fatalf("got %d successful registrations, want exactly 1", wins)
	}

	if taken != racers-1 {
		t.Fatalf("got %d duplicate rejections, want %d", taken, racers-1)
	}
}
