package stats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the subject records are published on when none is
// configured.
const DefaultSubject = "entitydao.stats"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every record as JSON on a NATS subject.
type NATSSink struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// ConnectNATS dials url and returns a sink owning the connection.
func ConnectNATS(url, subject string, logger *zap.Logger) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("entitydao-stats"))
	if err != nil {
		return nil, err
	}
	s := NewNATSSink(conn, subject, logger)
	s.conn = conn
	return s, nil
}

// NewNATSSink creates a sink over an existing publisher. The caller keeps
// ownership of pub.
func NewNATSSink(pub Publisher, subject string, logger *zap.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// Record implements Sink.
func (s *NATSSink) Record(_ context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("encode stats record", zap.Error(err))
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.logger.Error("publish stats record",
			zap.String("subject", s.subject),
			zap.Error(err),
		)
	}
}

// Close drains the connection when the sink owns it.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
