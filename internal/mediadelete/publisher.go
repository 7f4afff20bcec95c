// Package mediadelete defers media object deletion to an SQS consumer.
package mediadelete

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Message is the SQS message body for a deletion request.
type Message struct {
	Keys []string `json:"keys"`
}

// SQSSender abstracts SQS send operations for dependency inversion.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes deletion requests to an SQS queue.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
}

// NewSQSPublisher creates a new SQSPublisher.
func NewSQSPublisher(client SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
	}
}

// Remove publishes one message naming every non-empty key.
func (p *SQSPublisher) Remove(ctx context.Context, keys []string) error {
	msg := Message{Keys: make([]string, 0, len(keys))}
	for _, k := range keys {
		if k != "" {
			msg.Keys = append(msg.Keys, k)
		}
	}
	if len(msg.Keys) == 0 {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal media delete message: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send media delete message: %w", err)
	}
	return nil
}
