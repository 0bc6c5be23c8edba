// Package metrics exposes the synchronization core's running state —
// sync status, SNR, coarse/fine corrector values — as Prometheus
// gauges, the one piece of the event surface (spec.md §6) worth
// scraping rather than just pushing to a UI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gauge collectors for one receiver instance.
// Grounded on madpsy-ka9q_ubersdr's PrometheusMetrics: one
// promauto.NewGaugeVec per tracked quantity, registered at
// construction against the default registry.
type Metrics struct {
	synced           prometheus.Gauge
	snr              prometheus.Gauge
	coarseOffset     prometheus.Gauge
	fineCorrector    prometheus.Gauge
	syncLostTotal    prometheus.Counter
	noSignalTotal    prometheus.Counter
	stateTransitions *prometheus.CounterVec
}

// New registers and returns a Metrics instance. Registering twice
// against the default registry panics, matching promauto's behavior —
// callers construct exactly one Metrics per process.
func New() *Metrics {
	return &Metrics{
		synced: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dab_synced",
			Help: "1 if the receiver believes it is frame-synchronized, 0 otherwise.",
		}),
		snr: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dab_snr_db",
			Help: "Most recent SNR estimate from Block 0, in dB.",
		}),
		coarseOffset: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dab_coarse_offset_samples",
			Help: "Current coarse frequency-offset correction, in samples.",
		}),
		fineCorrector: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dab_fine_corrector_hz",
			Help: "Current fine frequency-corrector residue.",
		}),
		syncLostTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dab_sync_lost_total",
			Help: "Total number of syncLost events emitted.",
		}),
		noSignalTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dab_no_signal_found_total",
			Help: "Total number of noSignalFound events emitted in scan mode.",
		}),
		stateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dab_state_transitions_total",
			Help: "Total sync-state-machine transitions, labeled by destination state.",
		}, []string{"state"}),
	}
}

// SetSynced records the setSynced(bool) event.
func (m *Metrics) SetSynced(synced bool) {
	if synced {
		m.synced.Set(1)
	} else {
		m.synced.Set(0)
	}
}

// SetSNR records the showSnr(int) event.
func (m *Metrics) SetSNR(db int) {
	m.snr.Set(float64(db))
}

// SetCorrectors records the current coarse/fine corrector state. Nothing
// in this module calls it, so the two gauges stay at zero unless a
// caller reports the values.
func (m *Metrics) SetCorrectors(coarseOffset int, fineCorrector float64) {
	m.coarseOffset.Set(float64(coarseOffset))
	m.fineCorrector.Set(fineCorrector)
}

// IncSyncLost records a syncLost() event.
func (m *Metrics) IncSyncLost() {
	m.syncLostTotal.Inc()
}

// IncNoSignalFound records a noSignalFound() event.
func (m *Metrics) IncNoSignalFound() {
	m.noSignalTotal.Inc()
}

// ObserveStateChange records a sync-state-machine transition.
func (m *Metrics) ObserveStateChange(to string) {
	m.stateTransitions.WithLabelValues(to).Inc()
}
