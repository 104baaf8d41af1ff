package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context format: {version}-{trace-id}-{parent-id}-{trace-flags}
var traceHeaderRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

// traceInfo is the subset of a W3C trace context that Cloud Logging correlates on.
type traceInfo struct {
	traceID string
	spanID  string
	sampled bool
}

// resolveTrace prefers an active OpenTelemetry span and falls back to the raw header.
func resolveTrace(ctx context.Context, header string) (traceInfo, bool) {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return traceInfo{
			traceID: sc.TraceID().String(),
			spanID:  sc.SpanID().String(),
			sampled: sc.IsSampled(),
		}, true
	}
	matches := traceHeaderRe.FindStringSubmatch(header)
	if len(matches) != 5 {
		return traceInfo{}, false
	}
	return traceInfo{traceID: matches[2], spanID: matches[3], sampled: matches[4] == "01"}, true
}

func traceResource(info traceInfo, projectID string) string {
	if projectID == "" || info.traceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", projectID, info.traceID)
}

func traceFields(info traceInfo, projectID string) []zap.Field {
	resource := traceResource(info, projectID)
	if resource == "" {
		return nil
	}
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", resource),
		zap.String("logging.googleapis.com/spanId", info.spanID),
		zap.Bool("logging.googleapis.com/trace_sampled", info.sampled),
	}
}

func loggerWithTrace(base *zap.Logger, info traceInfo, projectID, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := traceFields(info, projectID)
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
