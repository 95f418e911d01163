package operation

import "courseprogress/internal/api/v1/dto"

type RecordDeadLetterInput struct {
	Body dto.PubSubPushRequest `json:"body"`
}

// RecordDeadLetterOutput is empty; the route answers 204 so Pub/Sub acks.
type RecordDeadLetterOutput struct{}
