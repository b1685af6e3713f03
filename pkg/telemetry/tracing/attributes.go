package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for admission spans.
const (
	AttrPoint        = "tollgate.point"
	AttrConnectionID = "tollgate.connection_id"
	AttrKeyCount     = "tollgate.key_count"
	AttrAllowed      = "tollgate.allowed"
	AttrPattern      = "tollgate.pattern"
	AttrLimit        = "tollgate.limit"
	AttrRequestID    = "tollgate.request_id"
	AttrRuleSource   = "tollgate.rule.source"
)

// SetCheckAttributes records the inputs of an admission check.
func SetCheckAttributes(span trace.Span, point, connectionID string, keyCount int) {
	span.SetAttributes(
		attribute.String(AttrPoint, point),
		attribute.String(AttrConnectionID, connectionID),
		attribute.Int(AttrKeyCount, keyCount),
	)
}

// SetVerdictAttributes records the verdict of an admission check. pattern
// and limit describe the rejecting rule and are omitted when empty.
func SetVerdictAttributes(span trace.Span, allowed bool, pattern string, limit int64) {
	attrs := []attribute.KeyValue{attribute.Bool(AttrAllowed, allowed)}
	if pattern != "" {
		attrs = append(attrs,
			attribute.String(AttrPattern, pattern),
			attribute.Int64(AttrLimit, limit),
		)
	}
	span.SetAttributes(attrs...)
}
