package compression

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/tracker"
)

const tracerName = "github.com/scaledown-ai/lingoeval/internal/compression"
const meterName = "compression"

// Service routes compression requests to the external service and turns
// every outcome, including failures, into a usable Result.
type Service struct {
	client      Client
	tracker     *tracker.Tracker
	forceTokens []string
	logger      *logging.Logger

	tracer trace.Tracer
	meter  metric.Meter

	compressions metric.Int64Counter
	degradations metric.Int64Counter
	tokenRatio   metric.Float64Histogram
}

// NewService creates a compression service.
func NewService(client Client, tr *tracker.Tracker, forceTokens []string, logger *logging.Logger) (*Service, error) {
	s := &Service{
		client:      client,
		tracker:     tr,
		forceTokens: forceTokens,
		logger:      logger.Named("compression"),
		tracer:      otel.Tracer(tracerName),
		meter:       otel.Meter(meterName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initMetrics() error {
	var err error

	s.compressions, err = s.meter.Int64Counter("compression.requests",
		metric.WithDescription("Compression requests issued"))
	if err != nil {
		return err
	}

	s.degradations, err = s.meter.Int64Counter("compression.degradations",
		metric.WithDescription("Compressions that fell back to the uncompressed prompt"))
	if err != nil {
		return err
	}

	s.tokenRatio, err = s.meter.Float64Histogram("compression.token_ratio",
		metric.WithDescription("Original to compressed token ratio"))
	if err != nil {
		return err
	}

	return nil
}

// CompressWithMethod compresses the passages under one method profile.
//
// It never fails: any error from the compression service, and a method
// config that selects no knob, produce a Degraded result carrying the
// uncompressed combined context and the failure reason.
func (s *Service) CompressWithMethod(ctx context.Context, contexts []string, query string, method MethodConfig) *Result {
	ctx, span := s.tracer.Start(ctx, "compression.compress_with_method",
		trace.WithAttributes(
			attribute.Int("context_count", len(contexts)),
		),
	)
	defer span.End()

	combined, spans := s.tracker.Prepare(contexts)

	req := Request{
		Question:            query,
		ForceTokens:         s.forceTokens,
		UseTokenLevelFilter: true,
	}

	switch {
	case method.Rate != nil:
		req.Context = []string{combined}
		req.Rate = method.Rate
		span.SetAttributes(attribute.String("method", "rate"))
	case method.TargetToken != nil:
		req.Context = []string{combined}
		req.TargetToken = method.TargetToken
		span.SetAttributes(attribute.String("method", "target_token"))
	case method.TargetContext != nil:
		// Context-level filtering needs the passages kept separate.
		req.Context = contexts
		req.TargetContext = method.TargetContext
		req.UseContextLevelFilter = true
		span.SetAttributes(attribute.String("method", "target_context"))
	default:
		return s.degrade(ctx, span, combined, "method config selects no compression knob")
	}

	s.compressions.Add(ctx, 1)

	resp, err := s.client.Compress(ctx, req)
	if err != nil {
		s.logger.Warn("compression failed, using uncompressed context", zap.Error(err))
		return s.degrade(ctx, span, combined, err.Error())
	}

	if resp.CompressedTokens > 0 {
		s.tokenRatio.Record(ctx, float64(resp.OriginTokens)/float64(resp.CompressedTokens))
	}
	span.SetAttributes(
		attribute.Int("origin_tokens", resp.OriginTokens),
		attribute.Int("compressed_tokens", resp.CompressedTokens),
	)

	return &Result{
		CompressedPrompt: resp.CompressedPrompt,
		CompressionRate:  resp.Rate,
		CompressionRatio: resp.Ratio,
		OriginalTokens:   resp.OriginTokens,
		CompressedTokens: resp.CompressedTokens,
		ContextAnalysis:  s.tracker.Retention(combined, resp.CompressedPrompt, spans),
	}
}

// degrade builds the fallback result: the uncompressed combined context
// with a sentinel 100% rate and the failure reason attached.
func (s *Service) degrade(ctx context.Context, span trace.Span, combined, reason string) *Result {
	s.degradations.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("degraded", true))

	words := len(strings.Fields(combined))
	return &Result{
		CompressedPrompt: combined,
		CompressionRate:  "100%",
		CompressionRatio: "1.0x",
		OriginalTokens:   words,
		CompressedTokens: words,
		ContextAnalysis:  map[int]tracker.Stats{},
		Degraded:         true,
		Error:            reason,
	}
}
