package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Local & Github Secrets (Fill up for local development)
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	S3URL              string `envconfig:"S3_URL" required:"true"`
	S3Bucket           string `envconfig:"S3_BUCKET" required:"true"`
	S3Region           string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey        string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey        string `envconfig:"S3_SECRET_KEY" required:"true"`
	Environment        string `envconfig:"ENV" default:"development"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"debug"`

	// Local Secrets (Fill up for local development)
	Port               string `envconfig:"PORT" default:"8080"`
	APIBaseURL         string `envconfig:"API_BASE_URL" default:"http://localhost:8080/v1"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Progress engine settings
	EnrollmentWriteAttempts int    `envconfig:"ENROLLMENT_WRITE_ATTEMPTS" default:"3"`
	CertificatePrefix       string `envconfig:"CERTIFICATE_PREFIX" default:"certificates"`
	CertificateURLTTLMin    int    `envconfig:"CERTIFICATE_URL_TTL_MIN" default:"15"`

	// Completion events: "queue" sends to pgmq, "pubsub" publishes to Pub/Sub
	NotificationTransport string `envconfig:"NOTIFICATION_TRANSPORT" default:"queue"`
	PubSubCompletionTopic string `envconfig:"PUBSUB_COMPLETION_TOPIC" default:"course-completion"`
	// Pull subscription drained by the notification orchestrator when the transport is pubsub
	PubSubCompletionSubscription string `envconfig:"PUBSUB_COMPLETION_SUBSCRIPTION" default:"course-completion-sub"`

	// Notification orchestrator settings
	NotificationQueueName         string `envconfig:"NOTIFICATION_QUEUE_NAME" default:"completion_queue"`
	NotificationPollTimeoutSec    int    `envconfig:"NOTIFICATION_POLL_TIMEOUT_SEC" default:"30"`
	NotificationPollMaxMsg        int    `envconfig:"NOTIFICATION_POLL_MAX_MSG" default:"10"`
	NotificationMaxRetries        int    `envconfig:"NOTIFICATION_MAX_RETRIES" default:"5"`
	NotificationBackoffInitialSec int    `envconfig:"NOTIFICATION_BACKOFF_INITIAL_SEC" default:"1"`
	NotificationBackoffMaxSec     int    `envconfig:"NOTIFICATION_BACKOFF_MAX_SEC" default:"60"`

	// Rows replayed per `-mode=replay` run
	DeadLetterReplayBatchSize int `envconfig:"DEAD_LETTER_REPLAY_BATCH_SIZE" default:"100"`

	// Reconcile orchestrator settings
	ReconcileCronSpec   string `envconfig:"RECONCILE_CRON_SPEC" default:"*/10 * * * *"`
	ReconcileBatchSize  int    `envconfig:"RECONCILE_BATCH_SIZE" default:"200"`
	ReconcileTimeoutSec int    `envconfig:"RECONCILE_TIMEOUT_SEC" default:"300"`

	// GitHub Secrets (No need to fill up for local development)
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`
	GCPProjectIDLocal             string `envconfig:"GCP_PROJECT_ID_LOCAL"`
	GCPProjectIDStaging           string `envconfig:"GCP_PROJECT_ID_STAGING"`
	GCPProjectIDProd              string `envconfig:"GCP_PROJECT_ID_PROD"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetGCPProjectID returns the appropriate GCP project ID based on the environment.
// Local if the emulator host is set, otherwise staging (preferred) or prod.
func (c *Config) GetGCPProjectID() string {
	if c.PubSubEmulatorHost != "" {
		return c.GCPProjectIDLocal
	}
	if c.GCPProjectIDStaging != "" {
		return c.GCPProjectIDStaging
	}
	return c.GCPProjectIDProd
}
