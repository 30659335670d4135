// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"fmt"
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "ticketvote"

var _ ledger.Recorder = (*Metrics)(nil)

// Metrics counts economy activity. It implements ledger.Recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	ticketsPurchased prometheus.Counter
	donations        prometheus.Counter
	ticketsVoted     prometheus.Counter
	votes            prometheus.Counter
	rejections       *prometheus.CounterVec
	proposalsClosed  prometheus.Counter
}

// New registers the economy collectors on reg.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: reg,
		ticketsPurchased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_purchased_total",
			Help:      "Voting tickets bought with donation balance.",
		}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_total",
			Help:      "Donation balance spent on tickets.",
		}),
		ticketsVoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_voted_total",
			Help:      "Tickets named in accepted votes, re-votes included.",
		}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Accepted votes.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Refused operations by operation and error kind.",
		}, []string{"op", "kind"}),
		proposalsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_closed_total",
			Help:      "Proposals that reached the closed state.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ticketsPurchased,
		m.donations,
		m.ticketsVoted,
		m.votes,
		m.rejections,
		m.proposalsClosed,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Purchased(tickets int64, cost decimal.Decimal) {
	m.ticketsPurchased.Add(float64(tickets))
	f, _ := cost.Float64()
	m.donations.Add(f)
}

func (m *Metrics) Voted(tickets int64) {
	m.votes.Inc()
	m.ticketsVoted.Add(float64(tickets))
}

func (m *Metrics) Rejected(op string, err error) {
	kind := ledger.Kind(err)
	if kind == "" {
		kind = "other"
	}
	m.rejections.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) ProposalClosed() {
	m.proposalsClosed.Inc()
}
