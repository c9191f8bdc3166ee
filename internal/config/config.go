package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

const defaultScope = "read_customers read_customer_contacts read_jobs manage_jobs create_jobs read_job_contacts " +
	"manage_job_contacts read_job_queues manage_job_queues read_schedule manage_schedule read_staff " +
	"read_job_categories manage_job_categories read_job_notes publish_job_notes read_attachments " +
	"manage_attachments read_job_attachments publish_job_attachments publish_email publish_sms"

type StoreConfig struct {
	Driver  string `envconfig:"STORE_DRIVER" default:"file"` // file | postgres
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	DBDSN                   string `envconfig:"DB_DSN"`
	DBPoolMaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"5"`
	DBPoolMinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	DBPoolMaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	DBPoolHealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"30s"`

	// deferred SMS queue: "store" keeps it next to the other documents
	DeferredQueueDriver string `envconfig:"DEFERRED_QUEUE_DRIVER" default:"store"` // store | sqs
	AWSRegion           string `envconfig:"AWS_REGION" default:"ap-southeast-2"`
	SQSDeferredQueueURL string `envconfig:"SQS_DEFERRED_QUEUE_URL"`
	LocalstackEndpoint  string `envconfig:"LOCALSTACK_ENDPOINT"`

	RedisURL string `envconfig:"REDIS_URL"`
}

type ServiceM8Config struct {
	BaseURL  string `envconfig:"SERVICEM8_BASE_URL" default:"https://api.servicem8.com"`
	AuthURL  string `envconfig:"SERVICEM8_AUTH_URL" default:"https://go.servicem8.com/oauth/authorize"`
	TokenURL string `envconfig:"SERVICEM8_TOKEN_URL" default:"https://go.servicem8.com/oauth/token"`
	APIKey   string `envconfig:"SERVICEM8_API_KEY"`

	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	RedirectURI  string `envconfig:"REDIRECT_URI"`
	Scope        string `envconfig:"OAUTH_SCOPE"`
}

// Scopes returns the configured OAuth scope list, space separated upstream.
func (c ServiceM8Config) Scopes() string {
	if c.Scope == "" {
		return defaultScope
	}
	return c.Scope
}

type SMSPolicyConfig struct {
	QuietHoursTZ    string  `envconfig:"QUIET_HOURS_TZ" default:"Australia/Brisbane"`
	QuietHoursStart int     `envconfig:"QUIET_HOURS_START" default:"20"`
	QuietHoursEnd   int     `envconfig:"QUIET_HOURS_END" default:"8"`
	MaxPerHour      int     `envconfig:"SMS_MAX_PER_HOUR" default:"3"`
	MaxAttempts     int     `envconfig:"SMS_MAX_ATTEMPTS" default:"3"`
	ProviderRPS     float64 `envconfig:"PROVIDER_RPS" default:"5"`
	ProviderBurst   int     `envconfig:"PROVIDER_BURST" default:"10"`
}

type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"3000"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// embedded so envconfig does not prefix their keys
	StoreConfig
	ServiceM8Config
	SMSPolicyConfig

	BrevoAPIKey      string `envconfig:"BREVO_API_KEY"`
	BrevoBaseURL     string `envconfig:"BREVO_BASE_URL" default:"https://api.brevo.com"`
	BrevoSenderEmail string `envconfig:"BREVO_SENDER_EMAIL" default:"no-reply@asaproadworthys.com.au"`
	BrevoSenderName  string `envconfig:"BREVO_SENDER_NAME" default:"ASAP Roadworthys"`
	BrevoReplyTo     string `envconfig:"BREVO_REPLY_TO" default:"support@asaproadworthys.com.au"`

	BitlyToken        string `envconfig:"BITLY_TOKEN"`
	BitlyCustomDomain string `envconfig:"BITLY_CUSTOM_DOMAIN" default:"bit.ly"`
	BitlyBaseURL      string `envconfig:"BITLY_BASE_URL" default:"https://api-ssl.bitly.com"`

	TrackingURL   string `envconfig:"TRACKING_URL" default:"https://www.asaproadworthys.com.au/"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`

	DedupTTL       time.Duration `envconfig:"DEDUP_TTL" default:"24h"`
	ReplaySchedule []string      `envconfig:"REPLAY_SCHEDULE" default:"0 8 * * *,@every 15m"`
}

type ReplayConfig struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	StoreConfig
	ServiceM8Config
	SMSPolicyConfig
}

func LoadServer() ServerConfig {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadReplay() ReplayConfig {
	var cfg ReplayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
