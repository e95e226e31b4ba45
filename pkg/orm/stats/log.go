package stats

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogSink writes records to a zap logger. Failed statements and statements
// slower than the threshold are logged at Warn, everything else at Debug.
type LogSink struct {
	logger *zap.Logger
	slow   time.Duration
}

// NewLogSink creates a log sink. A zero slowThreshold disables slow
// statement detection.
func NewLogSink(logger *zap.Logger, slowThreshold time.Duration) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, slow: slowThreshold}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, rec Record) {
	fields := []zap.Field{
		zap.String("conn", rec.ConnName),
		zap.String("conn_id", rec.ConnID),
		zap.String("sql", rec.SQL),
		zap.String("params", rec.Params),
		zap.Int64("rows", rec.Rows),
		zap.Duration("acquire", rec.Acquire),
		zap.Duration("connect", rec.Connect),
		zap.Duration("exec", rec.Exec),
		zap.Duration("total", rec.Total),
	}

	switch {
	case rec.Failed():
		s.logger.Warn("statement failed", append(fields, zap.String("error", rec.Err))...)
	case s.slow > 0 && rec.Total >= s.slow:
		s.logger.Warn("slow statement", fields...)
	default:
		s.logger.Debug("statement executed", fields...)
	}
}
