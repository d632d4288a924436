// Package events connects the pipeline to the rest of the product over
// NATS: review ingestion triggers extraction, and the dashboard reacts to
// pipeline lifecycle events.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectReviewStored is published by the review ingestion flow when a
	// new review lands for a tenant.
	SubjectReviewStored = "upreview.review.stored"

	// SubjectPhrasesExtracted is published after a direct-extract run
	// persists its batch.
	SubjectPhrasesExtracted = "upreview.phrases.extracted"

	// SubjectExcerptsGenerated is published after an excerpt generation run
	// commits.
	SubjectExcerptsGenerated = "upreview.excerpts.generated"
)

// PhrasesExtracted is the payload for SubjectPhrasesExtracted.
type PhrasesExtracted struct {
	TenantID  string `json:"tenant_id"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Timestamp string `json:"timestamp"`
}

// ExcerptsGenerated is the payload for SubjectExcerptsGenerated.
type ExcerptsGenerated struct {
	TenantID         string `json:"tenant_id"`
	PhrasesTouched   int    `json:"phrases_touched"`
	ExcerptsInserted int    `json:"excerpts_inserted"`
	Timestamp        string `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
