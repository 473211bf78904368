package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	TranslationsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codebase_translations_recorded_total",
		Help: "Total number of translations written to the store.",
	}, []string{"model"})

	MemoLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codebase_memo_lookups_total",
		Help: "Translation existence checks, by hit or miss.",
	}, []string{"result"})

	TranslateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codebase_translate_seconds",
		Help:    "Time spent in the external translation command.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"model"})

	TranslateSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebase_translate_skipped_total",
		Help: "Structs skipped because a translation with the same configuration already exists.",
	})

	TranslateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebase_translate_errors_total",
		Help: "Total number of failed external translation commands.",
	})
)
