package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/c360studio/crucible/verdict"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is the NATS subject prefix for published verdicts.
const SubjectPrefix = "crucible.verdicts."

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher sends verdicts to NATS for downstream consumers.
type Publisher struct {
	conn   Conn
	logger *slog.Logger
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("crucible"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewPublisher(conn, logger), nil
}

// Subject returns the subject a verdict for slug is published on. Characters
// that are special in NATS subjects are replaced with underscores.
func Subject(slug string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', unicode.IsSpace(r):
			return '_'
		}
		return r
	}, slug)
	if token == "" {
		token = "_"
	}
	return SubjectPrefix + token
}

// Publish sends the verdict JSON for slug.
func (p *Publisher) Publish(slug string, v verdict.Verdict) error {
	data, err := verdict.Encode(v)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(slug), data); err != nil {
		return fmt.Errorf("publish %s: %w", slug, err)
	}
	p.logger.Debug("Published verdict", "subject", Subject(slug), "decision", v.Decision)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	err := p.conn.Flush()
	p.conn.Close()
	return err
}
