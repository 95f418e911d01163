package handler

import (
	"context"
	"encoding/base64"
	"strconv"

	"courseprogress/internal/api/v1/dto"
	"courseprogress/internal/api/v1/operation"
	"courseprogress/internal/model"
	"courseprogress/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// Attributes Pub/Sub adds when it forwards a message to a dead-letter topic.
const (
	attrSourceSubscription = "CloudPubSubDeadLetterSourceSubscription"
	attrSourceDeliveries   = "CloudPubSubDeadLetterSourceDeliveryCount"
)

type DeadLetterHandler struct {
	service service.DeadLetterService
	logger  zerolog.Logger
}

func NewDeadLetterHandler(s service.DeadLetterService, l zerolog.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{service: s, logger: l.With().Str("handler", "DeadLetterHandler").Logger()}
}

// RecordDeadLetter stores a completion event pushed from the dead-letter topic.
func (h *DeadLetterHandler) RecordDeadLetter(ctx context.Context, input *operation.RecordDeadLetterInput) (*operation.RecordDeadLetterOutput, error) {
	if input.Body.Message.MessageID == "" {
		return nil, huma.Error400BadRequest("Invalid Pub/Sub message format: missing message ID")
	}

	in := h.undelivered(&input.Body)
	if err := h.service.Record(ctx, in); err != nil {
		// A 5xx makes Pub/Sub push the same dead letter again; the log is the record of the loss.
		h.logger.Error().Err(err).Str("message_id", in.MessageID).Str("source", in.Source).Msg("Failed to record dead-lettered completion")
	}
	return &operation.RecordDeadLetterOutput{}, nil
}

// undelivered attributes the message to the subscription that gave up on it,
// not the dead-letter subscription that pushed it here.
func (h *DeadLetterHandler) undelivered(req *dto.PubSubPushRequest) model.UndeliveredCompletion {
	msg := req.Message
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		h.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Dead letter data is not base64, keeping it as is")
		data = []byte(msg.Data)
	}

	source := req.Subscription
	if s := msg.Attributes[attrSourceSubscription]; s != "" {
		source = s
	}

	attempts := req.DeliveryAttempt
	if n, err := strconv.Atoi(msg.Attributes[attrSourceDeliveries]); err == nil {
		attempts = n
	}

	return model.UndeliveredCompletion{
		Source:           source,
		MessageID:        msg.MessageID,
		DeliveryAttempts: attempts,
		Data:             data,
		Attributes:       msg.Attributes,
	}
}
