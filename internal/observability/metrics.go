package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_api_requests_total", Help: "HTTP requests by route and status"},
		[]string{"endpoint", "status"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_webhook_events_total", Help: "Job completion webhook outcomes"},
		[]string{"outcome"},
	)
	ChannelSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_channel_send_total", Help: "Channel send outcomes"},
		[]string{"channel", "result"},
	)
	SendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "jobnotify_send_latency_seconds", Help: "Channel send latency including retries"},
		[]string{"channel"},
	)
	PolicyHolds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_policy_holds_total", Help: "Sends skipped or deferred by policy"},
		[]string{"channel", "reason"},
	)
	Deferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_deferred_total", Help: "Deferred SMS queue activity"},
		[]string{"result"},
	)
	TokenRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_token_refresh_total", Help: "OAuth token refresh outcomes"},
		[]string{"result"},
	)
	Shorten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jobnotify_shorten_total", Help: "Link shortening outcomes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, WebhookEvents, ChannelSend, SendLatency, PolicyHolds, Deferred, TokenRefresh, Shorten)
}
