package app

import (
	"math/big"

	"github.com/calehh/assetpool/state"
	"github.com/calehh/assetpool/tx"
	"github.com/calehh/assetpool/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "assetpool"

type Metrics struct {
	height        prometheus.Gauge
	blockTime     prometheus.Gauge
	txsTotal      *prometheus.CounterVec
	relayFailures *prometheus.CounterVec
	poolBalance   prometheus.Gauge
	livePolls     *prometheus.GaugeVec
	rewards       prometheus.Gauge
	rules         prometheus.Gauge
	managers      prometheus.Gauge
	members       prometheus.Gauge
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	m := new(Metrics)
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "block_height",
		Help:      "height of the last finalized block",
	})
	m.blockTime = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "block_time_seconds",
		Help:      "time of the last finalized block",
	})
	m.txsTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "txs_total",
		Help:      "finalized txs by type and outcome",
	}, []string{"type", "result"})
	m.relayFailures = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "relay_failures_total",
		Help:      "relayed actions that failed, by error code",
	}, []string{"code"})
	m.poolBalance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "pool_balance",
		Help:      "tokens held by the pool",
	})
	m.livePolls = promautoFactory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "live_polls",
		Help:      "polls not yet finalized, by kind",
	}, []string{"kind"})
	m.rewards = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "rewards",
		Help:      "rewards ever created",
	})
	m.rules = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "reward_rules",
		Help:      "reward rules ever created",
	})
	m.managers = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "managers",
		Help:      "current managers",
	})
	m.members = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "members",
		Help:      "current members",
	})
	return m
}

func (m *Metrics) observeTx(tp tx.PoolTxType, success bool, code string) {
	result := "success"
	if !success {
		result = "failure"
		m.relayFailures.WithLabelValues(code).Inc()
	}
	m.txsTotal.WithLabelValues(tp.Method(), result).Inc()
}

func (m *Metrics) observeState(st *state.State) {
	p := st.Pool()
	m.height.Set(float64(st.Header().Height))
	m.blockTime.Set(float64(st.Header().Time))
	bal, _ := new(big.Float).SetInt(p.Balance().ToBig()).Float64()
	m.poolBalance.Set(bal)
	counts := map[string]int{}
	for _, pl := range p.Polls() {
		counts[pl.Kind.String()]++
	}
	for _, kind := range []string{types.PollKindNameReward, types.PollKindNameRewardRule, types.PollKindNameWithdraw} {
		m.livePolls.WithLabelValues(kind).Set(float64(counts[kind]))
	}
	m.rewards.Set(float64(len(p.Rewards())))
	m.rules.Set(float64(len(p.RewardRules())))
	m.managers.Set(float64(len(p.Managers())))
	m.members.Set(float64(len(p.Members())))
}
