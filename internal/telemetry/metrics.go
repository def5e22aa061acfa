package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/event"
)

// Metrics counts domain events as they pass over the bus.
type Metrics struct {
	ProductsCreated prometheus.Counter
	SalesRecorded   prometheus.Counter
	PiecesSold      prometheus.Counter
	Revenue         prometheus.Counter
	StockLow        *prometheus.CounterVec
	QuizSubmitted   *prometheus.CounterVec
	QuizScore       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProductsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "inventory", Name: "products_created_total",
			Help: "Products added to the inventory.",
		}),
		SalesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "inventory", Name: "sales_total",
			Help: "Sales recorded.",
		}),
		PiecesSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "inventory", Name: "pieces_sold_total",
			Help: "Units sold across all sales.",
		}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "inventory", Name: "revenue_total",
			Help: "Sum of sale totals in the configured currency.",
		}),
		StockLow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "inventory", Name: "stock_low_total",
			Help: "Sales that left a product at or below its reorder level.",
		}, []string{"category"}),
		QuizSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk", Subsystem: "quiz", Name: "submissions_total",
			Help: "Graded quiz attempts by how they were submitted.",
		}, []string{"reason"}),
		QuizScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kiosk", Subsystem: "quiz", Name: "score_ratio",
			Help:    "Auto-graded score as a fraction of the auto-gradable maximum.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}

	reg.MustRegister(
		m.ProductsCreated,
		m.SalesRecorded,
		m.PiecesSold,
		m.Revenue,
		m.StockLow,
		m.QuizSubmitted,
		m.QuizScore,
	)

	return m
}

// Subscribe wires the counters to the events published on eb.
func (m *Metrics) Subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameProductCreated, func(context.Context, event.Event) error {
		m.ProductsCreated.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameSaleRecorded, func(_ context.Context, e event.Event) error {
		sl := e.(domain.EventSaleRecorded).Sale
		m.SalesRecorded.Inc()
		m.PiecesSold.Add(float64(sl.Quantity))
		m.Revenue.Add(sl.Total.InexactFloat64())
		return nil
	})

	eb.Subscribe(domain.EventNameStockLow, func(_ context.Context, e event.Event) error {
		m.StockLow.WithLabelValues(string(e.(domain.EventStockLow).Product.Category)).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameQuizSubmitted, func(_ context.Context, e event.Event) error {
		ev := e.(domain.EventQuizSubmitted)
		m.QuizSubmitted.WithLabelValues(ev.Reason).Inc()
		if ev.Result.MaxScore > 0 {
			m.QuizScore.Observe(float64(ev.Result.Score) / float64(ev.Result.MaxScore))
		}
		return nil
	})
}
