package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	StudiesCreated         prometheus.Counter
	StudiesClosed          prometheus.Counter
	ParticipantsRegistered prometheus.Counter
	ConsentsGranted        prometheus.Counter
	ConsentsRevoked        prometheus.Counter
	RewardsClaimed         prometheus.Counter
	RewardsDisbursed       prometheus.Counter
	VaultShortfalls        prometheus.Counter
	RequestDuration        *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		StudiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_studies_created_total",
			Help: "Total number of studies initialized",
		}),
		StudiesClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_studies_closed_total",
			Help: "Total number of studies closed",
		}),
		ParticipantsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_participants_registered_total",
			Help: "Total number of participant profiles registered",
		}),
		ConsentsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_consents_granted_total",
			Help: "Total number of consent records created",
		}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_consents_revoked_total",
			Help: "Total number of consent records revoked",
		}),
		RewardsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_rewards_claimed_total",
			Help: "Total number of successful reward claims",
		}),
		RewardsDisbursed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_rewards_disbursed_units_total",
			Help: "Total fungible units disbursed to participants",
		}),
		VaultShortfalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "recrusearch_vault_shortfalls_total",
			Help: "Claims rejected because a vault could not cover the reward; indicates an upstream accounting bug",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recrusearch_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// NewForTest creates an unregistered Metrics so parallel test packages do not
// collide on the default registry.
func NewForTest() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		StudiesCreated:         factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_studies_created_total"}),
		StudiesClosed:          factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_studies_closed_total"}),
		ParticipantsRegistered: factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_participants_registered_total"}),
		ConsentsGranted:        factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_consents_granted_total"}),
		ConsentsRevoked:        factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_consents_revoked_total"}),
		RewardsClaimed:         factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_rewards_claimed_total"}),
		RewardsDisbursed:       factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_rewards_disbursed_units_total"}),
		VaultShortfalls:        factory.NewCounter(prometheus.CounterOpts{Name: "recrusearch_vault_shortfalls_total"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "recrusearch_http_request_duration_seconds",
		}, []string{"route", "status"}),
	}
}
