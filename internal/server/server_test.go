package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tutorly/internal/app"
	"tutorly/pkg/ai"
	"tutorly/pkg/domain"
	"tutorly/pkg/quota"
	"tutorly/pkg/store"
)

type scriptedGenerator struct {
	reply ai.Reply
	err   error
}

func (g *scriptedGenerator) Chat(context.Context, string, []domain.ChatMessage) (ai.Reply, error) {
	return g.reply, g.err
}

type testHarness struct {
	srv   *httptest.Server
	store *store.GormStore
	gen   *scriptedGenerator
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	gormStore, err := store.NewGormStoreFromDB(db)
	if err != nil {
		t.Fatalf("NewGormStoreFromDB: %v", err)
	}

	mr := miniredis.RunT(t)
	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	guests, err := store.NewGuestStore(mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewGuestStore: %v", err)
	}
	t.Cleanup(func() { guests.Close() })

	gen := &scriptedGenerator{reply: ai.Reply{Content: "Here is an explanation.", TokensUsed: 9}}
	application := app.New(app.Config{
		Store:     gormStore,
		Ledger:    quota.NewLedger(db),
		Sessions:  sessions,
		Guests:    guests,
		Generator: gen,
	})

	s, err := New(Config{
		App:                    application,
		RedisAddr:              mr.Addr(),
		AuthRateLimitPerMinute: 1000,
		ChatRateLimitPerMinute: 1000,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	return &testHarness{srv: srv, store: gormStore, gen: gen}
}

func (h *testHarness) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

// signUp registers an account and returns its token. The first account
// in a fresh harness is the admin.
func (h *testHarness) signUp(t *testing.T, email string) string {
	t.Helper()
	resp, payload := h.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": "passw0rd123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d (%v)", email, resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("signup %s: no token in %v", email, payload)
	}
	return token
}

func (h *testHarness) startGuest(t *testing.T) string {
	t.Helper()
	resp, payload := h.request(t, http.MethodPost, "/api/auth/guest", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest session: status %d (%v)", resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	return token
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)
	resp, payload := h.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("healthz: %d %v", resp.StatusCode, payload)
	}
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	h := newTestHarness(t)
	resp, _ := h.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("no request id header on response")
	}
}

func seedAdminAndUser(t *testing.T, h *testHarness) (adminToken, userToken string) {
	t.Helper()
	adminToken = h.signUp(t, fmt.Sprintf("admin-%d@example.com", time.Now().UnixNano()))
	userToken = h.signUp(t, fmt.Sprintf("user-%d@example.com", time.Now().UnixNano()))
	return adminToken, userToken
}
