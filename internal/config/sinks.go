package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/pkg/orm/stats"
)

// Sinks holds the telemetry sinks opened from configuration
type Sinks struct {
	// Sink fans records out to every configured sink.
	Sink      stats.Sink
	Collector *stats.Collector
	Redis     *stats.RedisSink
	NATS      *stats.NATSSink
}

// Reader returns a reader over the recorded statements, preferring the
// shared Redis list over the in-process collector.
func (s *Sinks) Reader() (stats.Reader, bool) {
	if s.Redis != nil {
		return s.Redis, true
	}
	if s.Collector != nil {
		return s.Collector, true
	}
	return nil, false
}

// Close closes the network backed sinks
func (s *Sinks) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.NATS != nil {
		errs = append(errs, s.NATS.Close())
	}
	return errors.Join(errs...)
}

// OpenSinks connects every sink named in cfg. Sinks opened before a
// failure are closed again.
func OpenSinks(cfg StatsConfig, logger *zap.Logger) (*Sinks, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := &Sinks{}
	var multi stats.Multi
	for _, name := range cfg.Sinks() {
		switch name {
		case "log":
			multi = append(multi, stats.NewLogSink(logger, cfg.SlowThreshold))
		case "memory":
			out.Collector = stats.NewCollector(cfg.Capacity)
			multi = append(multi, out.Collector)
		case "redis":
			sink, err := stats.NewRedisSink(stats.RedisConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Key:      cfg.Redis.Key,
				MaxLen:   cfg.Redis.MaxLen,
			}, logger)
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("redis stats sink: %w", err)
			}
			out.Redis = sink
			multi = append(multi, sink)
		case "nats":
			sink, err := stats.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, logger)
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("nats stats sink: %w", err)
			}
			out.NATS = sink
			multi = append(multi, sink)
		case "none":
		default:
			out.Close()
			return nil, fmt.Errorf("%w: unknown stats sink %q", ErrInvalid, name)
		}
	}

	switch len(multi) {
	case 0:
		out.Sink = stats.Nop{}
	case 1:
		out.Sink = multi[0]
	default:
		out.Sink = multi
	}
	return out, nil
}
