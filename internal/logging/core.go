package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// gcpCore reshapes every entry with Transform before handing it to the JSON core.
// Fields added through With are held here so trace fields can be remapped no matter
// where they were attached.
type gcpCore struct {
	zapcore.LevelEnabler
	next   zapcore.Core
	fields []zapcore.Field
	now    func() time.Time
}

// NewCore returns a core that writes Cloud Logging shaped JSON lines to w.
func NewCore(w zapcore.WriteSyncer, enab zapcore.LevelEnabler) zapcore.Core {
	return &gcpCore{
		LevelEnabler: enab,
		next:         zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), w, enab),
		now:          time.Now,
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		// severity and timestamp are written as fields by Entry.ZapFields.
		MessageKey:     MessageKey,
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func (c *gcpCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &gcpCore{
		LevelEnabler: c.LevelEnabler,
		next:         c.next,
		fields:       merged,
		now:          c.now,
	}
}

func (c *gcpCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *gcpCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)

	tc, rest := SplitTrace(all)
	out := Transform(Record{Level: ent.Level, Message: ent.Message, Fields: rest}, tc, c.now())
	ent.Message = out.Message
	return c.next.Write(ent, out.ZapFields())
}

func (c *gcpCore) Sync() error {
	return c.next.Sync()
}
