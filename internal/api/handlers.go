package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/internal/ratelimit"
	"github.com/davidahmann/renoguard/pkg/types"
)

const (
	SessionHeader = "X-Session-ID"

	maxBodyBytes      = 64 << 10
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type Handler struct {
	Decisions *DecisionService
	AuditLog  ledger.Store
	Limiter   *ratelimit.Limiter
	Quota     *ratelimit.Quota
	Logger    *slog.Logger
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	if h.Decisions == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "decision service not configured"})
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(string(req.Target)) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing target"})
		return
	}

	writeJSON(w, http.StatusOK, h.Decisions.Decide(r.Context(), req))
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.AuditLog == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "audit store not configured"})
		return
	}

	q := r.URL.Query()
	filter := ledger.Filter{
		Day:    q.Get("day"),
		Target: types.Target(q.Get("target")),
		Limit:  defaultAuditLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = min(limit, maxAuditLimit)
	}
	if err := filter.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid day"})
		return
	}

	entries, err := h.AuditLog.List(r.Context(), filter)
	if err != nil {
		h.logger().Error("audit list failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// limit enforces the per-session rate and quota before next runs. A quota
// store outage lets the request through.
func (h *Handler) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionKey(r)

		if h.Limiter != nil && !h.Limiter.Allow(session) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		if h.Quota != nil {
			status, err := h.Quota.Allow(r.Context(), session)
			switch {
			case errors.Is(err, ratelimit.ErrQuotaExceeded):
				w.Header().Set("Retry-After", retryAfter(status.ResetAt))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "session quota exceeded"})
				return
			case err != nil:
				h.logger().Warn("session quota unavailable", "error", err.Error())
			}
		}

		next(w, r)
	}
}

// SessionKey identifies the caller: the session header when present, else
// the remote IP.
func SessionKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return "session:" + id
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return "ip:" + ip
}

func retryAfter(resetAt time.Time) string {
	secs := math.Ceil(time.Until(resetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(int(secs))
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
