// Package publish writes broadcast envelopes to the realtime events stream
// consumed by the dispatcher Lambda.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

// Record is the message format published to the realtime events stream. The
// topic is a discussion id; ExcludeConnectionID suppresses the echo to the
// originating connection.
type Record struct {
	Topic               string          `json:"topic"`
	Action              string          `json:"action"`
	Payload             json.RawMessage `json:"payload"`
	Timestamp           string          `json:"timestamp"`
	UserID              string          `json:"userId,omitempty"`
	ExcludeConnectionID string          `json:"excludeConnectionId,omitempty"`
}

// Publisher publishes events to the realtime Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a new Publisher using the standard stream name for the given
// environment.
func Build(env string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	client := kinesis.New(sess)
	return New(client, StreamName(env))
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-agora-ws-events"
}

// Send publishes an event to the realtime events stream. The topic is used as
// the Kinesis partition key to preserve ordering within a discussion.
func (p *Publisher) Send(ctx context.Context, topic, action string, payload interface{}, userID, excludeConnectionID string) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %v payload: %w", action, err)
	}

	record := Record{
		Topic:               topic,
		Action:              action,
		Payload:             payloadBytes,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		UserID:              userID,
		ExcludeConnectionID: excludeConnectionID,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(topic),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}
