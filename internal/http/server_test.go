package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"expense-tracker/internal/core"
	"expense-tracker/internal/idempotency"
	"expense-tracker/internal/log"
	"expense-tracker/internal/services"
	"expense-tracker/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	svc := services.NewTransactionService(memory.New(), nil)
	return NewServer(":0", svc, opts)
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func mustCreate(t *testing.T, h http.Handler, body string) core.Transaction {
	t.Helper()
	rr := do(h, http.MethodPost, "/transactions/", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	return decode[core.Transaction](t, rr)
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	rr := do(h, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("root status=%d", rr.Code)
	}
	if got := decode[map[string]string](t, rr)["message"]; got != "Expense Tracker API is running" {
		t.Fatalf("unexpected root message %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := do(h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s: status=%d body=%q", path, rr.Code, rr.Body)
		}
	}
}

type downService struct {
	*services.TransactionService
}

func (downService) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyzReportsUnavailableStore(t *testing.T) {
	svc := downService{services.NewTransactionService(memory.New(), nil)}
	h := NewServer(":0", svc, Options{Logger: quietLogger()}).Handler

	rr := do(h, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestCreateAndList(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	first := mustCreate(t, h, `{"type":"credit","amount":100,"description":"salary","created_at":"2025-06-01T09:00:00"}`)
	if first.ID != 1 || first.Type != core.Credit || first.Amount != 100 || first.DescriptionValue() != "salary" {
		t.Fatalf("unexpected transaction %+v", first)
	}
	if !first.CreatedAt.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at not kept: %v", first.CreatedAt)
	}

	// The slashless form routes to the same handler.
	rr := do(h, http.MethodPost, "/transactions", `{"type":"debit","amount":30,"created_at":"2025-06-02"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("slashless create status=%d body=%s", rr.Code, rr.Body)
	}
	second := decode[core.Transaction](t, rr)
	if second.Description != nil {
		t.Fatalf("description should be null, got %q", *second.Description)
	}
	if !strings.Contains(rr.Body.String(), `"description":null`) {
		t.Fatalf("null description not serialized: %s", rr.Body)
	}

	rr = do(h, http.MethodGet, "/transactions/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	list := decode[[]core.Transaction](t, rr)
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected most recent first, got %+v", list)
	}

	rr = do(h, http.MethodGet, "/transactions?skip=1&limit=1", "")
	list = decode[[]core.Transaction](t, rr)
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("unexpected page %+v", list)
	}

	rr = do(h, http.MethodGet, "/transactions/?skip=50", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("beyond range should be [] got %d %q", rr.Code, rr.Body)
	}
}

func TestCreateDefaultsTimestamp(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	before := time.Now().UTC().Add(-time.Second)
	tx := mustCreate(t, h, `{"type":"credit","amount":5}`)
	if tx.CreatedAt.Before(before) || tx.CreatedAt.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("created_at %v not near now", tx.CreatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	tests := []struct {
		name    string
		body    string
		wantLoc []string
		wantTyp string
	}{
		{"missing type", `{"amount":1}`, []string{"body", "type"}, core.KindMissing},
		{"missing amount", `{"type":"debit"}`, []string{"body", "amount"}, core.KindMissing},
		{"amount as string", `{"type":"debit","amount":"ten"}`, []string{"body", "amount"}, core.KindFloat},
		{"null amount", `{"type":"debit","amount":null}`, []string{"body", "amount"}, core.KindNone},
		{"unknown type", `{"type":"transfer","amount":1}`, []string{"body", "type"}, core.KindEnum},
		{"numeric description", `{"type":"debit","amount":1,"description":7}`, []string{"body", "description"}, core.KindString},
		{"bad timestamp", `{"type":"debit","amount":1,"created_at":"yesterday"}`, []string{"body", "created_at"}, core.KindDateTime},
		{"malformed json", `{"type":`, []string{"body"}, core.KindJSON},
		{"array body", `[1,2]`, []string{"body"}, core.KindDict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, http.MethodPost, "/transactions/", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body)
			}
			resp := decode[validationResponse](t, rr)
			if len(resp.Detail) == 0 {
				t.Fatalf("empty detail: %s", rr.Body)
			}
			got := resp.Detail[0]
			if strings.Join(got.Loc, ".") != strings.Join(tt.wantLoc, ".") || got.Type != tt.wantTyp {
				t.Fatalf("got loc=%v type=%s, want loc=%v type=%s", got.Loc, got.Type, tt.wantLoc, tt.wantTyp)
			}
		})
	}

	rr := do(h, http.MethodPost, "/transactions/", `{}`)
	if resp := decode[validationResponse](t, rr); len(resp.Detail) != 2 {
		t.Fatalf("both missing fields should be reported, got %+v", resp.Detail)
	}

	rr = do(h, http.MethodGet, "/transactions/", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("rejected payloads must not be stored: %s", rr.Body)
	}
}

func TestListValidation(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	tests := []struct {
		target string
		field  string
	}{
		{"/transactions/?skip=abc", "skip"},
		{"/transactions/?limit=0", "limit"},
		{"/transactions/?skip=-1", "skip"},
	}
	for _, tt := range tests {
		rr := do(h, http.MethodGet, tt.target, "")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", tt.target, rr.Code)
		}
		resp := decode[validationResponse](t, rr)
		if resp.Detail[0].Loc[0] != "query" || resp.Detail[0].Loc[1] != tt.field {
			t.Fatalf("%s: unexpected loc %v", tt.target, resp.Detail[0].Loc)
		}
	}
}

func TestUpdate(t *testing.T) {
	h := newTestServer(t, Options{}).Handler
	orig := mustCreate(t, h, `{"type":"debit","amount":12,"description":"lunch","created_at":"2025-06-03T12:30:00Z"}`)

	t.Run("keeps created_at when null", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/transactions/1", `{"type":"credit","amount":15,"description":null,"created_at":null}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
		}
		tx := decode[core.Transaction](t, rr)
		if tx.Type != core.Credit || tx.Amount != 15 || tx.Description != nil {
			t.Fatalf("fields not replaced: %+v", tx)
		}
		if !tx.CreatedAt.Equal(orig.CreatedAt) {
			t.Fatalf("created_at changed: %v -> %v", orig.CreatedAt, tx.CreatedAt)
		}
	})

	t.Run("overwrites created_at when given", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/transactions/1", `{"type":"credit","amount":15,"created_at":"2025-01-01 08:00:00"}`)
		tx := decode[core.Transaction](t, rr)
		if !tx.CreatedAt.Equal(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)) {
			t.Fatalf("created_at not overwritten: %v", tx.CreatedAt)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/transactions/999", `{"type":"credit","amount":1}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
		if got := decode[detailResponse](t, rr).Detail; got != "Transaction not found" {
			t.Fatalf("unexpected detail %q", got)
		}
	})

	t.Run("non numeric id", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/transactions/abc", `{"type":"credit","amount":1}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rr.Code)
		}
		loc := decode[validationResponse](t, rr).Detail[0].Loc
		if strings.Join(loc, ".") != "path.transaction_id" {
			t.Fatalf("unexpected loc %v", loc)
		}
	})
}

func TestBalanceAndDescriptions(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	rr := do(h, http.MethodGet, "/balance/", "")
	if got := decode[map[string]float64](t, rr)["balance"]; got != 0 {
		t.Fatalf("empty balance should be 0, got %v", got)
	}
	rr = do(h, http.MethodGet, "/descriptions/", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty descriptions should be [], got %q", rr.Body)
	}

	mustCreate(t, h, `{"type":"credit","amount":100,"description":"salary"}`)
	mustCreate(t, h, `{"type":"debit","amount":30,"description":"groceries"}`)
	mustCreate(t, h, `{"type":"debit","amount":0,"description":"groceries"}`)
	mustCreate(t, h, `{"type":"debit","amount":0}`)

	rr = do(h, http.MethodGet, "/balance", "")
	if got := decode[map[string]float64](t, rr)["balance"]; got != 70 {
		t.Fatalf("expected balance 70, got %v", got)
	}

	descs := decode[[]string](t, do(h, http.MethodGet, "/descriptions", ""))
	if strings.Join(descs, ",") != "groceries,salary" {
		t.Fatalf("unexpected descriptions %v", descs)
	}

	freq := decode[[]core.DescriptionCount](t, do(h, http.MethodGet, "/descriptions/frequent/", ""))
	if len(freq) != 1 || freq[0].Description != "groceries" || freq[0].Count != 2 {
		t.Fatalf("unexpected frequent descriptions %+v", freq)
	}
	freq = decode[[]core.DescriptionCount](t, do(h, http.MethodGet, "/descriptions/frequent/?min=1", ""))
	if len(freq) != 2 {
		t.Fatalf("min=1 should return all descriptions, got %+v", freq)
	}
	if rr := do(h, http.MethodGet, "/descriptions/frequent/?min=0", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("min=0 should be rejected, got %d", rr.Code)
	}
}

func TestStatement(t *testing.T) {
	h := newTestServer(t, Options{}).Handler
	mustCreate(t, h, `{"type":"credit","amount":500,"created_at":"2025-05-20"}`)
	mustCreate(t, h, `{"type":"debit","amount":100,"created_at":"2025-06-01T10:00:00"}`)
	mustCreate(t, h, `{"type":"credit","amount":20,"created_at":"2025-06-30T23:00:00"}`)
	mustCreate(t, h, `{"type":"debit","amount":999,"created_at":"2025-07-01"}`)

	rr := do(h, http.MethodGet, "/statement/?month=2025-06", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	st := decode[core.Statement](t, rr)
	if st.OpeningBalance != 500 || len(st.Lines) != 2 || st.ClosingBalance != 420 {
		t.Fatalf("unexpected statement %+v", st)
	}
	if st.Lines[0].Balance != 400 || st.Lines[1].Balance != 420 {
		t.Fatalf("unexpected running balance %+v", st.Lines)
	}

	st = decode[core.Statement](t, do(h, http.MethodGet, "/statement?from=2025-06-30&to=2025-07-01", ""))
	if len(st.Lines) != 2 || st.OpeningBalance != 400 {
		t.Fatalf("unexpected day range statement %+v", st)
	}

	st = decode[core.Statement](t, do(h, http.MethodGet, "/statement/", ""))
	if len(st.Lines) != 4 || st.ClosingBalance != -579 {
		t.Fatalf("unexpected full statement %+v", st)
	}

	for _, q := range []string{"month=June", "from=2025-13-01", "from=2025-06-02&to=2025-06-01"} {
		if rr := do(h, http.MethodGet, "/statement/?"+q, ""); rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", q, rr.Code)
		}
	}
}

func TestCharts(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	for _, path := range []string{"/charts/credit-debit.png", "/charts/frequent.png"} {
		if rr := do(h, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("%s without data: expected 404, got %d", path, rr.Code)
		}
	}

	mustCreate(t, h, `{"type":"credit","amount":100,"description":"salary"}`)
	mustCreate(t, h, `{"type":"debit","amount":30,"description":"salary"}`)

	for _, path := range []string{"/charts/credit-debit.png", "/charts/frequent.png"} {
		rr := do(h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: status=%d type=%q", path, rr.Code, rr.Header().Get("Content-Type"))
		}
		if !strings.HasPrefix(rr.Body.String(), "\x89PNG") {
			t.Fatalf("%s: body is not a PNG", path)
		}
	}
}

func TestCORS(t *testing.T) {
	const origin = "http://localhost:3000"

	t.Run("any origin is echoed", func(t *testing.T) {
		h := newTestServer(t, Options{AllowedOrigins: []string{"*"}}).Handler

		rr := do(h, http.MethodOptions, "/transactions/", "",
			"Origin", origin,
			"Access-Control-Request-Method", http.MethodPost,
			"Access-Control-Request-Headers", "content-type")
		if rr.Code >= 300 {
			t.Fatalf("preflight status=%d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("expected origin echoed, got %q", got)
		}
		if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Fatal("credentials should be allowed")
		}

		// Preflights succeed for methods no route serves yet.
		rr = do(h, http.MethodOptions, "/transactions/1", "",
			"Origin", origin,
			"Access-Control-Request-Method", http.MethodDelete)
		if got := rr.Header().Get("Access-Control-Allow-Methods"); got != http.MethodDelete {
			t.Fatalf("expected DELETE preflight allowed, got %q", got)
		}

		rr = do(h, http.MethodGet, "/balance/", "", "Origin", "https://example.org")
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.org" {
			t.Fatalf("simple request: expected origin echoed, got %q", got)
		}
	})

	t.Run("listed origins only", func(t *testing.T) {
		h := newTestServer(t, Options{AllowedOrigins: []string{origin}}).Handler

		rr := do(h, http.MethodGet, "/balance/", "", "Origin", "https://evil.example")
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("unlisted origin must not be allowed, got %q", got)
		}
		rr = do(h, http.MethodGet, "/balance/", "", "Origin", origin)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("listed origin should be allowed, got %q", got)
		}
	})
}

type mapStore struct {
	mu    sync.Mutex
	saved map[string]idempotency.Response
	locks map[string]bool
}

func (s *mapStore) Lookup(_ context.Context, key string) (*idempotency.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.saved[key]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *mapStore) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *mapStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func (s *mapStore) Save(_ context.Context, key string, resp idempotency.Response, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[key] = resp
	return nil
}

func TestIdempotentCreate(t *testing.T) {
	store := &mapStore{saved: map[string]idempotency.Response{}, locks: map[string]bool{}}
	h := newTestServer(t, Options{Idempotency: store, IdempotencyTTL: time.Hour}).Handler
	body := `{"type":"debit","amount":9.5,"description":"taxi"}`

	first := do(h, http.MethodPost, "/transactions/", body, idempotency.Header, "retry-1")
	// A retry through the slashless path is still the same request.
	second := do(h, http.MethodPost, "/transactions", body, idempotency.Header, "retry-1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses %d/%d", first.Code, second.Code)
	}
	if second.Header().Get(idempotency.HitHeader) != "true" {
		t.Fatal("retry should be served from the idempotency store")
	}
	if decode[core.Transaction](t, first).ID != decode[core.Transaction](t, second).ID {
		t.Fatal("retry returned a different transaction")
	}

	do(h, http.MethodPost, "/transactions/", body)
	list := decode[[]core.Transaction](t, do(h, http.MethodGet, "/transactions/", ""))
	if len(list) != 2 {
		t.Fatalf("expected 2 rows (one keyed, one plain), got %d", len(list))
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newTestServer(t, Options{}).Handler

	rr := do(h, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound || decode[detailResponse](t, rr).Detail != "Not Found" {
		t.Fatalf("unexpected 404 response %d %q", rr.Code, rr.Body)
	}
	rr = do(h, http.MethodDelete, "/transactions/1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{WriteRateLimit: 1})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h := srv.Handler
	body := `{"type":"credit","amount":1}`

	if rr := do(h, http.MethodPost, "/transactions/", body); rr.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rr.Code)
	}
	rr := do(h, http.MethodPost, "/transactions/", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	// Reads are never limited.
	if rr := do(h, http.MethodGet, "/transactions/", ""); rr.Code != http.StatusOK {
		t.Fatalf("list after limit: %d", rr.Code)
	}
}

func TestOverflowingAggregatesAreServerErrors(t *testing.T) {
	h := newTestServer(t, Options{}).Handler
	for i := 0; i < 2; i++ {
		if rr := do(h, http.MethodPost, "/transactions/", `{"type":"credit","amount":1.7e308,"created_at":"2025-03-01"}`); rr.Code != http.StatusCreated {
			t.Fatalf("create: %d %s", rr.Code, rr.Body)
		}
	}

	for _, target := range []string{"/balance/", "/statement/?month=2025-03"} {
		t.Run(target, func(t *testing.T) {
			rr := do(h, http.MethodGet, target, "")
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d %q", rr.Code, rr.Body)
			}
			if got := decode[detailResponse](t, rr).Detail; got != "Internal Server Error" {
				t.Fatalf("unexpected detail %q", got)
			}
		})
	}
}
