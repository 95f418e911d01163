package dto

// PubSubPushRequest is the body Pub/Sub posts to a push subscription.
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
	// Set only when the subscription has a dead-letter policy.
	DeliveryAttempt int `json:"deliveryAttempt,omitempty"`
}

type PubSubMessage struct {
	Data        string            `json:"data" doc:"Base64-encoded completion event"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
