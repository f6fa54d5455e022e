package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-pushbullet-service/internal/dispatcher"
)

// Sender is the dispatcher operation the processor needs.
type Sender interface {
	Send(ctx context.Context, req dispatcher.Request) (dispatcher.Report, error)
}

// NewProcessor hands each request to the sender. Delivery is best effort:
// failures are logged and the message is still acknowledged, so Pub/Sub
// redelivery never acts as a retry.
func NewProcessor(sender Sender, logger *slog.Logger) messagepipeline.StreamProcessor[dispatcher.Request] {
	return func(ctx context.Context, original messagepipeline.Message, request *dispatcher.Request) error {
		procLogger := logger.With(
			"request_id", request.ID,
			"pubsub_msg_id", original.ID,
			"targets", len(request.Targets),
		)

		report, err := sender.Send(ctx, *request)
		if err != nil {
			procLogger.Error("Notification dispatch failed", "err", err)
			return nil
		}
		procLogger.Info("Notification processed", "delivered", report.Delivered(), "outcomes", len(report.Outcomes))
		return nil
	}
}
