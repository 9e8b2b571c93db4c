package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"tbot/pkg/notify"
)

// SubjectPrefix is prepended to the recipient ID.
const SubjectPrefix = "tbot.notify."

// NATSConfig holds broker connection settings.
type NATSConfig struct {
	URL            string
	Name           string
	Token          string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns the settings used by the server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "tbot",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// ConnectNATS dials the broker.
func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Publisher is the part of *nats.Conn the sender needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSender publishes each message on tbot.notify.<recipient>, where bot
// workers pick it up and deliver it to the chat.
type NATSSender struct {
	pub Publisher
}

// NewNATSSender creates a NATSSender.
func NewNATSSender(pub Publisher) *NATSSender {
	return &NATSSender{pub: pub}
}

// Subject returns the subject a recipient's messages go to.
func Subject(recipient int64) string {
	return fmt.Sprintf("%s%d", SubjectPrefix, recipient)
}

// Send implements notify.Sender.
func (s *NATSSender) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}
	if err := s.pub.Publish(Subject(msg.Recipient), data); err != nil {
		return fmt.Errorf("publish to %d: %w", msg.Recipient, err)
	}
	return nil
}
