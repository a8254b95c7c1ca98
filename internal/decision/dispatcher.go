package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidahmann/renoguard/internal/risk"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/davidahmann/renoguard/internal/decision"

// DefaultTimeout bounds a single rule evaluation.
const DefaultTimeout = 250 * time.Millisecond

var ErrEvaluatorPanic = errors.New("rule evaluator panicked")

type Options struct {
	// Timeout bounds each evaluation; zero or negative disables the bound.
	Timeout        time.Duration
	Logger         *slog.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Dispatcher routes a target to its rule evaluator and guarantees a result.
// Every fault resolves to a conservative WARN instead of an error.
type Dispatcher struct {
	engine      *risk.Engine
	evaluators  map[types.Target]rules.Evaluator
	timeout     time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
	evaluations metric.Int64Counter
}

func NewDispatcher(engine *risk.Engine, evaluators []rules.Evaluator, opts Options) *Dispatcher {
	if engine == nil {
		engine = risk.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	byTarget := make(map[types.Target]rules.Evaluator, len(evaluators))
	for _, ev := range evaluators {
		byTarget[ev.Target()] = ev
	}

	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"renoguard.decision.evaluations",
		metric.WithDescription("Decision evaluations by target, result and fallback kind."),
	)
	if err != nil {
		logger.Warn("decision metrics disabled", "error", err)
	}

	return &Dispatcher{
		engine:      engine,
		evaluators:  byTarget,
		timeout:     opts.Timeout,
		logger:      logger,
		tracer:      tp.Tracer(instrumentationName),
		evaluations: counter,
	}
}

var defaultDispatcher = NewDispatcher(risk.Default(), rules.Default(), Options{Timeout: DefaultTimeout})

// EvaluateDecision judges payload for target with the built-in rules and policy.
func EvaluateDecision(target types.Target, dctx types.DecisionContext, payload rules.Payload) types.DecisionResult {
	return defaultDispatcher.Evaluate(context.Background(), target, dctx, payload)
}

func (d *Dispatcher) Engine() *risk.Engine { return d.engine }

// Evaluate never returns an error and never panics.
func (d *Dispatcher) Evaluate(ctx context.Context, target types.Target, dctx types.DecisionContext, payload rules.Payload) types.DecisionResult {
	ctx, span := d.tracer.Start(ctx, "decision.evaluate", trace.WithAttributes(attribute.String("target", string(target))))
	defer span.End()

	res, kind := d.dispatch(ctx, target, dctx, payload)

	span.SetAttributes(attribute.String("result", string(res.Result)), attribute.String("fallback", string(kind)))
	if d.evaluations != nil {
		d.evaluations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target", string(target)),
			attribute.String("result", string(res.Result)),
			attribute.String("fallback", string(kind)),
		))
	}
	return res
}

// EvaluateRaw decodes raw for target and evaluates it. The decoded payload is
// returned for audit summaries even when it fails validation; it is nil only
// when raw could not be decoded at all.
func (d *Dispatcher) EvaluateRaw(ctx context.Context, target types.Target, dctx types.DecisionContext, raw []byte) (types.DecisionResult, rules.Payload) {
	if _, ok := d.evaluators[target]; !ok {
		return d.Evaluate(ctx, target, dctx, nil), nil
	}
	payload, err := rules.DecodePayload(target, raw)
	if err != nil {
		return d.Evaluate(ctx, target, dctx, nil), nil
	}
	return d.Evaluate(ctx, target, dctx, payload), payload
}

func (d *Dispatcher) dispatch(ctx context.Context, target types.Target, dctx types.DecisionContext, payload rules.Payload) (res types.DecisionResult, kind FallbackKind) {
	defer func() {
		// Last line of defense; run already recovers evaluator panics.
		if r := recover(); r != nil {
			res, kind = d.fallback(FallbackInternalError, target, dctx, fmt.Errorf("%w: %v", ErrEvaluatorPanic, r))
		}
	}()

	ev, ok := d.evaluators[target]
	if !ok {
		return d.fallback(FallbackUnknownTarget, target, dctx, nil)
	}
	if payload == nil {
		return d.fallback(FallbackMalformedPayload, target, dctx, rules.ErrMalformedPayload)
	}
	if payload.Target() != target {
		return d.fallback(FallbackMalformedPayload, target, dctx, fmt.Errorf("%w: payload for %s", rules.ErrMalformedPayload, payload.Target()))
	}
	if err := payload.Validate(); err != nil {
		return d.fallback(FallbackMalformedPayload, target, dctx, err)
	}

	res, err := d.run(ctx, ev, dctx, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return d.fallback(FallbackTimeout, target, dctx, err)
		}
		return d.fallback(FallbackInternalError, target, dctx, err)
	}
	return res, FallbackNone
}

type runOutcome struct {
	res types.DecisionResult
	err error
}

// run evaluates and aggregates on a separate goroutine so a stuck rule cannot
// hold the caller past the deadline. A rule that overruns finishes in the
// background and its result is discarded.
func (d *Dispatcher) run(ctx context.Context, ev rules.Evaluator, dctx types.DecisionContext, payload rules.Payload) (types.DecisionResult, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return types.DecisionResult{}, err
	}

	done := make(chan runOutcome, 1)
	go func() {
		var out runOutcome
		defer func() {
			if r := recover(); r != nil {
				out = runOutcome{err: fmt.Errorf("%w: %v", ErrEvaluatorPanic, r)}
			}
			done <- out
		}()
		outcome, err := ev.Evaluate(dctx, payload)
		if err != nil {
			out.err = err
			return
		}
		out.res = d.engine.Aggregate(outcome.Risks, dctx, outcome.Alternatives)
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return types.DecisionResult{}, ctx.Err()
	}
}
