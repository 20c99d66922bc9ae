// Package metrics exposes Prometheus instrumentation for the notification
// queue and delivery worker on a side HTTP server.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics holds all collectors.
type Metrics struct {
	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
	NotificationsRetried prometheus.Counter
	NotificationsDropped prometheus.Counter
	QueueDepth           *prometheus.GaugeVec
	DeliveryDuration     prometheus.Histogram
	BetsPlaced           prometheus.Counter
	MarketsResolved      prometheus.Counter
}

// New registers and returns the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_notifications_sent_total",
			Help: "Notifications delivered successfully",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_notifications_failed_total",
			Help: "Notification delivery attempts that failed",
		}),
		NotificationsRetried: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_notifications_retried_total",
			Help: "Notifications returned to the queue for retry",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_notifications_dropped_total",
			Help: "Notifications parked as permanent failures",
		}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predmarket_notification_queue_depth",
			Help: "Notification queue depth by status",
		}, []string{"status"}),
		DeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "predmarket_notification_delivery_seconds",
			Help:    "Time spent delivering a single notification",
			Buckets: prometheus.DefBuckets,
		}),
		BetsPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_bets_placed_total",
			Help: "Bets accepted by the market engine",
		}),
		MarketsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "predmarket_markets_resolved_total",
			Help: "Markets settled",
		}),
	}
}

// Server serves /metrics and /healthz on a side port.
type Server struct {
	srv *http.Server
}

// NewServer creates the metrics server.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener closes. Run in a goroutine.
func (s *Server) Start() {
	log.WithField("addr", s.srv.Addr).Info("Metrics server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("Metrics server failed")
	}
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
