package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davidahmann/renoguard/internal/audit"
	"github.com/davidahmann/renoguard/internal/decision"
	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/internal/ratelimit"
	"github.com/davidahmann/renoguard/internal/risk"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
)

type syncSink struct {
	store ledger.Store
}

func (s syncSink) Save(entry types.AuditLogEntry) error {
	return s.store.Append(context.Background(), entry)
}

func newTestHandler(t *testing.T) (*Handler, *ledger.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledger.NewInMemoryStore()
	dispatcher := decision.NewDispatcher(risk.Default(), rules.Default(), decision.Options{Timeout: decision.DefaultTimeout, Logger: logger})
	return &Handler{
		Decisions: &DecisionService{
			Dispatcher: dispatcher,
			Audit:      syncSink{store: store},
			Logger:     logger,
			Now:        func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		},
		AuditLog: store,
		Logger:   logger,
	}, store
}

func postDecision(t *testing.T, router http.Handler, body string, session string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", bytes.NewBufferString(body))
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decodeDecision(t *testing.T, res *httptest.ResponseRecorder) DecisionResponse {
	t.Helper()
	var out DecisionResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, res.Body.String())
	}
	return out
}

const petGlossRequest = `{
  "target": "KITCHEN_COUNTERTOP",
  "space": {"housingType": "아파트", "residencePlan": "short"},
  "signals": {"finalTags": ["HAS_CHILD", "CLEANING_SYSTEM_NEED", "HAS_PET_DOG"]},
  "payload": {"material": "PET_GLOSS", "memo": "010-1234-5678"}
}`

func TestDecideReturnsEnvelopeAndContract(t *testing.T) {
	h, store := newTestHandler(t)
	res := postDecision(t, NewRouter(h), petGlossRequest, "s1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	out := decodeDecision(t, res)
	if out.Envelope.Target != types.TargetKitchenCountertop {
		t.Fatalf("unexpected target: %s", out.Envelope.Target)
	}
	if out.Envelope.Result == types.VerdictPass {
		t.Fatalf("expected a warning for PET_GLOSS with kids, got PASS")
	}
	if out.UI.DecisionResult != out.Envelope.Result || len(out.UI.Alternatives) != len(out.Envelope.Alternatives) {
		t.Fatalf("contract does not mirror envelope: %+v vs %+v", out.UI, out.Envelope)
	}
	for _, ref := range out.Envelope.Reasons {
		if !strings.HasPrefix(ref.Key, "reason_") || ref.Code == "" {
			t.Fatalf("unexpected reason ref: %+v", ref)
		}
	}

	entries, err := store.List(context.Background(), ledger.Filter{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d err=%v", len(entries), err)
	}
	entry := entries[0]
	if entry.PayloadSummary.Material != "PET_GLOSS" {
		t.Fatalf("unexpected material: %q", entry.PayloadSummary.Material)
	}
	if got := entry.PayloadSummary.KeyFlags; got == nil || len(got) != 0 {
		t.Fatalf("signals must not be persisted as keyFlags, got %v", got)
	}
	body, _ := json.Marshal(entry)
	if strings.Contains(string(body), "010-1234") {
		t.Fatalf("audit entry leaked payload extras: %s", body)
	}
}

func TestDecideNeverLeaksReasonText(t *testing.T) {
	h, _ := newTestHandler(t)
	res := postDecision(t, NewRouter(h), petGlossRequest, "s1")
	body := res.Body.String()
	if strings.Contains(body, "스크래치 및 변색") || strings.Contains(body, "충격에 의한") || strings.Contains(body, "consequences") {
		t.Fatalf("response carries reason text: %s", body)
	}
}

func TestDecideMalformedPayloadIsConservative(t *testing.T) {
	h, store := newTestHandler(t)
	res := postDecision(t, NewRouter(h), `{"target":"KITCHEN_COUNTERTOP","payload":{"material":"MARBLE"},"keyFlags":["BUDGET_STRICT","홍길동"]}`, "s1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeDecision(t, res)
	if out.Envelope.Result != types.VerdictWarn || len(out.Envelope.Reasons) != 1 || out.Envelope.Reasons[0].Code != decision.CodePayloadIncomplete {
		t.Fatalf("unexpected envelope: %+v", out.Envelope)
	}

	entries, _ := store.List(context.Background(), ledger.Filter{})
	if len(entries) != 1 || entries[0].PayloadSummary.Material != audit.UnrecognizedMaterial {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
	if got := entries[0].PayloadSummary.KeyFlags; len(got) != 1 || got[0] != "BUDGET_STRICT" {
		t.Fatalf("keyFlags not sanitized: %v", got)
	}
}

func TestDecideUnknownTargetIsConservative(t *testing.T) {
	h, _ := newTestHandler(t)
	res := postDecision(t, NewRouter(h), `{"target":"BATHROOM_TILE","payload":{}}`, "s1")
	out := decodeDecision(t, res)
	if out.Envelope.Result != types.VerdictWarn || out.Envelope.Reasons[0].Code != decision.CodeRuleNotImplemented {
		t.Fatalf("unexpected envelope: %+v", out.Envelope)
	}
	if out.UI.DecisionBlocked {
		t.Fatalf("fallback must not block")
	}
}

func TestDecideRejectsBadRequests(t *testing.T) {
	h, store := newTestHandler(t)
	router := NewRouter(h)
	for name, body := range map[string]string{
		"invalid json":   "{invalid",
		"missing target": `{"payload":{"material":"QUARTZ"}}`,
		"oversized":      `{"target":"KITCHEN_COUNTERTOP","payload":{"material":"` + strings.Repeat("A", maxBodyBytes) + `"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if res := postDecision(t, router, body, "s1"); res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
		})
	}
	if store.Len() != 0 {
		t.Fatalf("rejected requests must not be audited")
	}
}

func TestDecideNotConfigured(t *testing.T) {
	res := postDecision(t, NewRouter(&Handler{}), petGlossRequest, "")
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestDecideRateLimitedPerSession(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Limiter = ratelimit.NewLimiter(0.001, 1, time.Minute)
	router := NewRouter(h)

	if res := postDecision(t, router, petGlossRequest, "s1"); res.Code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", res.Code)
	}
	res := postDecision(t, router, petGlossRequest, "s1")
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if res := postDecision(t, router, petGlossRequest, "s2"); res.Code != http.StatusOK {
		t.Fatalf("other sessions keep their own bucket, got %d", res.Code)
	}
}

func TestDecideSessionQuota(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Quota = ratelimit.NewQuota(ratelimit.NewMemoryStore(), ratelimit.DefaultSessionQuota, time.Hour)
	router := NewRouter(h)

	for i := 0; i < ratelimit.DefaultSessionQuota; i++ {
		if res := postDecision(t, router, petGlossRequest, "s1"); res.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, res.Code)
		}
	}
	res := postDecision(t, router, petGlossRequest, "s1")
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after quota, got %d", res.Code)
	}
	if ra := res.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Fatalf("unexpected Retry-After: %q", ra)
	}
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, io.ErrUnexpectedEOF
}

func TestDecideQuotaOutageFailsOpen(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Quota = ratelimit.NewQuota(brokenCounter{}, 1, time.Hour)
	if res := postDecision(t, NewRouter(h), petGlossRequest, "s1"); res.Code != http.StatusOK {
		t.Fatalf("expected 200 during quota outage, got %d", res.Code)
	}
}

func TestListAudit(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)
	postDecision(t, router, petGlossRequest, "s1")
	postDecision(t, router, `{"target":"KITCHEN_COUNTERTOP","payload":{"material":"PORCELAIN"}}`, "s1")

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?day=2026-03-01&target=KITCHEN_COUNTERTOP&limit=1", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var out struct {
		Entries []types.AuditLogEntry `json:"entries"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(out.Entries))
	}
	if err := ledger.VerifyEntry(out.Entries[0]); err != nil {
		t.Fatalf("listed entry fails verification: %v", err)
	}

	for _, query := range []string{"day=2026-3-1", "limit=zero", "limit=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/audit?"+query, nil)
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, res.Code)
		}
	}
}

func TestListAuditNotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	res := httptest.NewRecorder()
	NewRouter(&Handler{}).ServeHTTP(res, req)
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	NewRouter(&Handler{}).ServeHTTP(res, req)
	if res.Code != http.StatusOK || strings.TrimSpace(res.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected health response: %d %s", res.Code, res.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/decisions", nil)
	res := httptest.NewRecorder()
	NewRouter(&Handler{}).ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestSessionKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := SessionKey(req); got != "ip:203.0.113.9" {
		t.Fatalf("unexpected ip key: %s", got)
	}
	req.Header.Set(SessionHeader, " abc ")
	if got := SessionKey(req); got != "session:abc" {
		t.Fatalf("unexpected session key: %s", got)
	}
}

func TestDecideWithAsyncAuditLogger(t *testing.T) {
	h, _ := newTestHandler(t)
	store := ledger.NewInMemoryStore()
	logger := audit.NewLogger(store, audit.Options{Logger: h.Logger})
	h.Decisions.Audit = logger

	postDecision(t, NewRouter(h), petGlossRequest, "s1")
	if err := logger.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected drained audit entry, got %d", store.Len())
	}
}
