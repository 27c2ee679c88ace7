package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"riskpool/core/events"
	"riskpool/native/cooler"
	"riskpool/native/etoken"
)

type ledgerMetrics struct {
	deposits        *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	scrLocks        *prometheus.CounterVec
	scrUnlocks      *prometheus.CounterVec
	internalLoans   *prometheus.CounterVec
	loanRepayments  *prometheus.CounterVec
	defaults        *prometheus.CounterVec
	redistributions *prometheus.CounterVec
	scheduled       *prometheus.CounterVec
	executed        *prometheus.CounterVec
	scale           *prometheus.GaugeVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

func counter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskpool",
		Subsystem: "ledger",
		Name:      name,
		Help:      help,
	}, []string{"etoken"})
}

// Ledger returns the metrics registry tracking pool ledger activity.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			deposits:        counter("deposits_total", "Count of LP deposits per etoken."),
			withdrawals:     counter("withdrawals_total", "Count of withdrawals per etoken."),
			scrLocks:        counter("scr_locks_total", "Count of SCR locks per etoken."),
			scrUnlocks:      counter("scr_unlocks_total", "Count of SCR unlocks per etoken."),
			internalLoans:   counter("internal_loans_total", "Count of internal loan draws per etoken."),
			loanRepayments:  counter("loan_repayments_total", "Count of internal loan repayments per etoken."),
			defaults:        counter("debt_defaults_total", "Count of borrower defaults per etoken."),
			redistributions: counter("redistributions_total", "Count of cooler surplus redistributions per etoken."),
			scheduled:       counter("withdrawals_scheduled_total", "Count of cooler requests scheduled per etoken."),
			executed:        counter("withdrawals_executed_total", "Count of cooler requests executed per etoken."),
			scale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "riskpool",
				Subsystem: "ledger",
				Name:      "scale_wad",
				Help:      "Current ledger scale in wad fixed point.",
			}, []string{"etoken"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.deposits,
			ledgerRegistry.withdrawals,
			ledgerRegistry.scrLocks,
			ledgerRegistry.scrUnlocks,
			ledgerRegistry.internalLoans,
			ledgerRegistry.loanRepayments,
			ledgerRegistry.defaults,
			ledgerRegistry.redistributions,
			ledgerRegistry.scheduled,
			ledgerRegistry.executed,
			ledgerRegistry.scale,
		)
	})
	return ledgerRegistry
}

// MetricsEmitter fans ledger events into the prometheus registry. It is
// meant to be composed with other emitters via events.MultiEmitter.
type MetricsEmitter struct {
	metrics *ledgerMetrics
}

// NewMetricsEmitter returns an emitter backed by the shared registry.
func NewMetricsEmitter() *MetricsEmitter {
	return &MetricsEmitter{metrics: Ledger()}
}

// Emit implements the events.Emitter interface.
func (m *MetricsEmitter) Emit(evt events.Event) {
	if m == nil || m.metrics == nil || evt == nil {
		return
	}
	rendered := evt.Event()
	if rendered == nil {
		return
	}
	etk := rendered.Attributes["etoken"]
	switch rendered.Type {
	case etoken.EventTypeDeposit:
		m.metrics.deposits.WithLabelValues(etk).Inc()
	case etoken.EventTypeWithdrawal:
		m.metrics.withdrawals.WithLabelValues(etk).Inc()
	case etoken.EventTypeSCRLocked:
		m.metrics.scrLocks.WithLabelValues(etk).Inc()
	case etoken.EventTypeSCRUnlocked:
		m.metrics.scrUnlocks.WithLabelValues(etk).Inc()
	case etoken.EventTypeInternalLoan:
		m.metrics.internalLoans.WithLabelValues(etk).Inc()
	case etoken.EventTypeLoanRepaid:
		m.metrics.loanRepayments.WithLabelValues(etk).Inc()
	case etoken.EventTypeDebtDefaulted:
		m.metrics.defaults.WithLabelValues(etk).Inc()
	case etoken.EventTypeEarningsRecorded:
		if scale, ok := new(big.Float).SetString(rendered.Attributes["scale"]); ok {
			value, _ := scale.Float64()
			m.metrics.scale.WithLabelValues(etk).Set(value)
		}
	case cooler.EventTypeWithdrawalScheduled:
		m.metrics.scheduled.WithLabelValues(etk).Inc()
	case cooler.EventTypeWithdrawalExecuted:
		m.metrics.executed.WithLabelValues(etk).Inc()
	case cooler.EventTypeETokensRedistributed:
		m.metrics.redistributions.WithLabelValues(etk).Inc()
	}
}
