package tokensvc

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	tokensIssuedTotal *prometheus.CounterVec
	mintDuration      *prometheus.HistogramVec
	mintFailuresTotal *prometheus.CounterVec
)

// RegisterMetrics inicializa las métricas de emisión. Idempotente.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metricsOnce.Do(func() {
		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portero_tokens_issued_total",
			Help: "Tokens emitidos, por grant type y kind",
		}, []string{"grant_type", "kind"})

		mintDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portero_token_mint_duration_seconds",
			Help:    "Duración del mint completo (hooks + firma + persistencia)",
			Buckets: prometheus.DefBuckets,
		}, []string{"grant_type"})

		mintFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portero_token_mint_failures_total",
			Help: "Mints fallidos, separando error de negocio vs técnico",
		}, []string{"grant_type", "class"})

		reg.MustRegister(tokensIssuedTotal, mintDuration, mintFailuresTotal)
	})
}

func observeIssued(grantType, kind string) {
	if tokensIssuedTotal != nil {
		tokensIssuedTotal.WithLabelValues(grantType, kind).Inc()
	}
}

func observeMint(grantType string, seconds float64) {
	if mintDuration != nil {
		mintDuration.WithLabelValues(grantType).Observe(seconds)
	}
}

func observeFailure(grantType, class string) {
	if mintFailuresTotal != nil {
		mintFailuresTotal.WithLabelValues(grantType, class).Inc()
	}
}
