package stream

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultNATSSubject = "eeg.ticks"

// Connect dials NATS with unlimited reconnects
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("eeg-monitor"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// NATSPublisher publishes ticks on one subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url; an empty subject uses DefaultNATSSubject
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultNATSSubject
	}

	nc, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Publish(payload []byte) error {
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
