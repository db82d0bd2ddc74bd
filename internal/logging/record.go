package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names used on the way in (from callers) and on the way out (to Cloud Logging).
const (
	TraceIDKey    = "trace_id"
	SpanIDKey     = "span_id"
	TraceFlagsKey = "trace_flags"

	SeverityKey          = "severity"
	MessageKey           = "message"
	TimestampKey         = "timestamp"
	CloudTraceKey        = "logging.googleapis.com/trace"
	CloudSpanIDKey       = "logging.googleapis.com/spanId"
	CloudTraceSampledKey = "logging.googleapis.com/trace_sampled"
)

// sampledFlags is the W3C trace-flags value for a sampled span.
const sampledFlags = "01"

// Record is a log call before it is shaped for Cloud Logging.
type Record struct {
	Level   zapcore.Level
	Message string
	Fields  []zapcore.Field
}

// TraceContext carries the correlation fields found on a record. Empty means absent.
type TraceContext struct {
	TraceID    string
	SpanID     string
	TraceFlags string
}

// Entry is a record in the shape Cloud Logging expects.
type Entry struct {
	Severity     string
	Message      string
	Timestamp    string
	Trace        *string
	SpanID       *string
	TraceSampled *bool
	Fields       []zapcore.Field
}

// Transform shapes rec for Cloud Logging. The timestamp always comes from now.
// Caller fields that reuse a generated key (severity, message, timestamp or one of
// the trace keys) are dropped so every output key appears once.
func Transform(rec Record, tc TraceContext, now time.Time) Entry {
	out := Entry{
		Severity:  Severity(rec.Level),
		Message:   rec.Message,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Fields:    make([]zapcore.Field, 0, len(rec.Fields)),
	}
	for _, f := range rec.Fields {
		switch f.Key {
		case SeverityKey, MessageKey, TimestampKey,
			TraceIDKey, SpanIDKey, TraceFlagsKey,
			CloudTraceKey, CloudSpanIDKey, CloudTraceSampledKey:
			continue
		}
		out.Fields = append(out.Fields, f)
	}
	if tc.TraceID != "" {
		out.Trace = &tc.TraceID
	}
	if tc.SpanID != "" {
		out.SpanID = &tc.SpanID
	}
	if tc.TraceFlags != "" {
		sampled := tc.TraceFlags == sampledFlags
		out.TraceSampled = &sampled
	}
	return out
}

// SplitTrace pulls the correlation fields out of fields. The returned slice holds
// everything else in its original order.
func SplitTrace(fields []zapcore.Field) (TraceContext, []zapcore.Field) {
	var tc TraceContext
	rest := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		switch f.Key {
		case TraceIDKey:
			tc.TraceID = fieldString(f)
		case SpanIDKey:
			tc.SpanID = fieldString(f)
		case TraceFlagsKey:
			tc.TraceFlags = fieldString(f)
		default:
			rest = append(rest, f)
		}
	}
	return tc, rest
}

// ZapFields flattens the entry into the field list handed to the JSON encoder.
func (e Entry) ZapFields() []zapcore.Field {
	fields := make([]zapcore.Field, 0, len(e.Fields)+5)
	fields = append(fields,
		zap.String(SeverityKey, e.Severity),
		zap.String(TimestampKey, e.Timestamp),
	)
	fields = append(fields, e.Fields...)
	if e.Trace != nil {
		fields = append(fields, zap.String(CloudTraceKey, *e.Trace))
	}
	if e.SpanID != nil {
		fields = append(fields, zap.String(CloudSpanIDKey, *e.SpanID))
	}
	if e.TraceSampled != nil {
		fields = append(fields, zap.Bool(CloudTraceSampledKey, *e.TraceSampled))
	}
	return fields
}

func fieldString(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.StringerType:
		if s, ok := f.Interface.(fmt.Stringer); ok {
			return s.String()
		}
	case zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			return string(b)
		}
	}
	return ""
}
