// Package main implements the media-delete SQS consumer Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"go.opentelemetry.io/otel"

	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/mediadelete"
)

var logger = logging.New()

// handler implements the media-delete SQS consumer logic.
type handler struct {
	remover media.Remover
}

// newHandler creates a new handler.
func newHandler(remover media.Remover) *handler {
	return &handler{remover: remover}
}

// handle processes an SQS event containing media deletion messages.
func (h *handler) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	tracer := otel.Tracer("collab-media-delete")
	ctx, span := tracer.Start(ctx, "MediaDeleteHandler")
	defer span.End()

	var failures []events.SQSBatchItemFailure

	for _, record := range event.Records {
		var msg mediadelete.Message
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			logger.ErrorContext(ctx, "Failed to parse SQS message",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		if len(msg.Keys) == 0 {
			continue
		}

		if err := h.remover.Remove(ctx, msg.Keys); err != nil {
			logger.ErrorContext(ctx, "Failed to delete media",
				slog.String("message_id", record.MessageId),
				slog.Any("keys", msg.Keys),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	logger.InfoContext(ctx, "Media delete batch completed",
		slog.Int("total", len(event.Records)),
		slog.Int("failures", len(failures)),
	)

	return events.SQSEventResponse{
		BatchItemFailures: failures,
	}, nil
}

func main() {
	ctx := context.Background()

	result, err := awsinit.Init(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize", slog.String("error", err.Error()))
		panic(err)
	}

	bucket := os.Getenv("MEDIA_BUCKET")

	s3Client := s3.NewFromConfig(result.Config)
	store := media.NewStore(s3.NewPresignClient(s3Client), s3Client, bucket, result.Config.Region, os.Getenv("MEDIA_BASE_URL"))

	h := newHandler(store)
	result.Start(h.handle)
}
