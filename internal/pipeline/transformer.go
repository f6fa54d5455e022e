// Package pipeline contains the message processing components that feed
// notification requests from Pub/Sub into the dispatcher.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-pushbullet-service/internal/dispatcher"
)

// NotificationRequestTransformer is a dataflow Transformer that unmarshals a
// raw message payload into a dispatcher.Request.
//
// Malformed payloads and requests without a message are returned with
// skip=true so the subscription's dead-letter policy takes over.
func NotificationRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*dispatcher.Request, bool, error) {
	var req dispatcher.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal notification request from message %s: %w", msg.ID, err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, true, fmt.Errorf("notification request in message %s has no message body", msg.ID)
	}
	if req.ID == "" {
		req.ID = msg.ID
	}
	return &req, false, nil
}
