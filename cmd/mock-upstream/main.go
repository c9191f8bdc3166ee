// Command mock-upstream imitates the ServiceM8 endpoints the server calls, so
// the notification flow can run locally end to end. It can also fire signed
// completion webhooks at the server.
package main

import (
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Port   string `envconfig:"PORT" default:"8081"`
	APIKey string `envconfig:"MOCK_API_KEY" default:"mock_key"`

	JobStatus      string `envconfig:"MOCK_JOB_STATUS" default:"Completed"`
	ContactFirst   string `envconfig:"MOCK_CONTACT_FIRST" default:"Ana"`
	ContactEmail   string `envconfig:"MOCK_CONTACT_EMAIL" default:"ana@example.com"`
	ContactMobile  string `envconfig:"MOCK_CONTACT_MOBILE" default:"+61412345678"`
	TechnicianName string `envconfig:"MOCK_TECHNICIAN" default:"Sam"`

	// SMS outcomes: ok, 400, 401, 429, 500, timeout
	OutcomeMode    string        `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"` // fixed | round_robin | random
	OutcomesRaw    string        `envconfig:"MOCK_OUTCOMES" default:"ok"`
	Delay          time.Duration `envconfig:"MOCK_DELAY" default:"0s"`
	TimeoutDelay   time.Duration `envconfig:"MOCK_TIMEOUT_DELAY" default:"12s"`
	WebhookURL     string        `envconfig:"MOCK_WEBHOOK_URL" default:"http://localhost:3000/webhook/handleSendEmailIfCompleted"`
	WebhookSecret  string        `envconfig:"MOCK_WEBHOOK_SECRET" default:"mock_secret"`
	WebhookRetries int           `envconfig:"MOCK_WEBHOOK_MAX_RETRIES" default:"3"`
	WebhookBackoff time.Duration `envconfig:"MOCK_WEBHOOK_RETRY_BASE" default:"250ms"`

	Outcomes []string `ignored:"true"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock upstream config load failed", "err", err)
		os.Exit(1)
	}
	cfg.OutcomeMode = strings.ToLower(cfg.OutcomeMode)
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)
	if len(cfg.Outcomes) == 0 {
		cfg.Outcomes = []string{"ok"}
	}

	s := newServer(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))

	slog.Info("mock upstream listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, s.routes()); err != nil {
		slog.Error("mock upstream server failed", "err", err)
		os.Exit(1)
	}
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
