package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/davidahmann/renoguard/internal/audit"
	rcontext "github.com/davidahmann/renoguard/internal/context"
	"github.com/davidahmann/renoguard/internal/decision"
	"github.com/davidahmann/renoguard/internal/envelope"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
)

type DecisionRequest struct {
	Target   types.Target        `json:"target"`
	Space    *rcontext.SpaceInfo `json:"space,omitempty"`
	Signals  *rcontext.Signals   `json:"signals,omitempty"`
	Payload  json.RawMessage     `json:"payload"`
	KeyFlags []string            `json:"keyFlags,omitempty"`
}

type DecisionResponse struct {
	Envelope types.DecisionEnvelope `json:"envelope"`
	UI       types.UIContract       `json:"ui"`
}

// AuditSink accepts finished entries; *audit.Logger is the production sink.
// Implementations log their own persistence failures; the service only
// notes a rejected entry at debug level.
type AuditSink interface {
	Save(entry types.AuditLogEntry) error
}

type DecisionService struct {
	Dispatcher *decision.Dispatcher
	Audit      AuditSink
	Logger     *slog.Logger
	Now        func() time.Time
}

// Decide evaluates req and queues its audit entry. It always produces a
// response; evaluation faults surface as conservative verdicts.
func (s *DecisionService) Decide(ctx context.Context, req DecisionRequest) DecisionResponse {
	dctx := rcontext.BuildDecisionContext(req.Space, req.Signals)
	result, payload := s.Dispatcher.EvaluateRaw(ctx, req.Target, dctx, req.Payload)
	env := envelope.Wrap(req.Target, result)

	if s.Audit != nil {
		s.record(req, result, payload)
	}
	return DecisionResponse{Envelope: env, UI: envelope.ExtractUIContract(&env)}
}

func (s *DecisionService) record(req DecisionRequest, result types.DecisionResult, payload rules.Payload) {
	entry, err := audit.NewEntry(req.Target, result, payload, s.Dispatcher.Engine().Policy(), req.KeyFlags, s.now())
	if err != nil {
		s.logger().Error("audit entry not built", "target", string(req.Target), "error", err.Error())
		return
	}
	if err := s.Audit.Save(entry); err != nil {
		s.logger().Debug("audit entry rejected by sink", "target", string(req.Target), "error", err.Error())
	}
}

func (s *DecisionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *DecisionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Evaluate returns the internal result for req without auditing it. It is
// meant for operator tooling; UI callers use Decide.
func (s *DecisionService) Evaluate(ctx context.Context, req DecisionRequest) types.DecisionResult {
	dctx := rcontext.BuildDecisionContext(req.Space, req.Signals)
	result, _ := s.Dispatcher.EvaluateRaw(ctx, req.Target, dctx, req.Payload)
	return result
}
