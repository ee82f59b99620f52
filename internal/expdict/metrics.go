package expdict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rebuild reasons.
const (
	ReasonMissing   = "missing"
	ReasonChanged   = "changed"
	ReasonInvalid   = "invalid"
	ReasonWriteTask = "write_task"
)

// Error stages.
const (
	StageLock   = "lock"
	StageReload = "reload"
	StageWrite  = "write"
	StageLoad   = "load"
	StageClose  = "close"
)

// Mutation and query names used for contention drops.
const (
	OpAddWord      = "add_word"
	OpAddBigram    = "add_bigram"
	OpRemoveBigram = "remove_bigram"
	OpIsValidWord  = "is_valid_word"
	OpIsValidPair  = "is_valid_bigram"
	OpSuggestions  = "suggestions"
)

// Metrics counts controller events. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Rebuilds         *prometheus.CounterVec
	RebuildSeconds   *prometheus.HistogramVec
	Reloads          *prometheus.CounterVec
	StaleReverted    *prometheus.CounterVec
	ContentionDrops  *prometheus.CounterVec
	WritesSuperseded *prometheus.CounterVec
	Errors           *prometheus.CounterVec
}

// NewMetrics registers the controller metrics with reg.
// A nil reg means [prometheus.DefaultRegisterer].
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_rebuilds_total",
			Help: "Dictionary files written and mapped, by reason",
		}, []string{"dict_type", "reason"}),
		RebuildSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dictionary_rebuild_duration_seconds",
			Help:    "Time spent serializing and mapping a dictionary file",
			Buckets: prometheus.DefBuckets,
		}, []string{"dict_type"}),
		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_reloads_total",
			Help: "Existing dictionary files mapped without a rewrite",
		}, []string{"dict_type"}),
		StaleReverted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_stale_requests_reverted_total",
			Help: "Reload requests dropped because the source had not changed",
		}, []string{"dict_type"}),
		ContentionDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_contention_drops_total",
			Help: "Mutations dropped or lookups answered empty because the instance lock was busy",
		}, []string{"dict_type", "op"}),
		WritesSuperseded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_write_tasks_superseded_total",
			Help: "Pending write tasks cancelled by a newer one",
		}, []string{"dict_type"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dictionary_errors_total",
			Help: "Controller failures, by stage",
		}, []string{"dict_type", "stage"}),
	}
}

func (m *Metrics) rebuild(dictType, reason string, seconds float64) {
	if m == nil {
		return
	}

	m.Rebuilds.WithLabelValues(dictType, reason).Inc()
	m.RebuildSeconds.WithLabelValues(dictType).Observe(seconds)
}

func (m *Metrics) reload(dictType string) {
	if m == nil {
		return
	}

	m.Reloads.WithLabelValues(dictType).Inc()
}

func (m *Metrics) staleReverted(dictType string) {
	if m == nil {
		return
	}

	m.StaleReverted.WithLabelValues(dictType).Inc()
}

func (m *Metrics) contentionDrop(dictType, op string) {
	if m == nil {
		return
	}

	m.ContentionDrops.WithLabelValues(dictType, op).Inc()
}

func (m *Metrics) writeSuperseded(dictType string) {
	if m == nil {
		return
	}

	m.WritesSuperseded.WithLabelValues(dictType).Inc()
}

func (m *Metrics) failure(dictType, stage string) {
	if m == nil {
		return
	}

	m.Errors.WithLabelValues(dictType, stage).Inc()
}
