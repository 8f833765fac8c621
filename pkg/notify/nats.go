package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATS publishes events on "<prefix>.<kind>" subjects.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// NewNATS connects to the NATS server at url.
func NewNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("vibescore"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if prefix == "" {
		prefix = "vibescore"
	}
	return &NATS{conn: nc, prefix: prefix}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Send(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal nats payload: %w", err)
	}
	if err := n.conn.Publish(Subject(n.prefix, e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Subject returns the subject an event kind is published on.
func Subject(prefix, kind string) string {
	return prefix + "." + kind
}
