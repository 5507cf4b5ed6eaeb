// Package kafka wraps segmentio/kafka-go writers and readers for the
// commerce event stream. The client is a no-op when no brokers are set.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrDisabled is returned when publishing without configured brokers.
var ErrDisabled = errors.New("kafka disabled")

// Client holds the broker list shared by writers and readers.
type Client struct {
	Brokers []string
}

// NewClient parses a comma-separated broker list. An empty list disables
// publishing.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

// Enabled reports whether at least one broker is configured.
func (c *Client) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// NewWriter builds a hash-balanced writer for the topic.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader builds a consumer-group reader for the topic.
func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// PublishJSON marshals the payload and writes a single keyed message.
func PublishJSON(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}
