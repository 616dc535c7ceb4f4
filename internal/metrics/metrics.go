// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"leave-bot/internal/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "leave"

var (
	LeaveTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Leave request lifecycle operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by result",
		},
		[]string{"result"},
	)

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Audit entries that could not be written",
	})

	BotCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_command_duration_seconds",
			Help:      "Time spent handling a bot command",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_rate_limited_total",
		Help:      "Updates dropped by the per-chat rate limiter",
	})
)

// RecordTransition counts a lifecycle operation; the outcome is "ok" or the
// error kind.
func RecordTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	LeaveTransitions.WithLabelValues(action, outcome).Inc()
}

// TrackCommand returns a func that observes the elapsed time for command.
func TrackCommand(command string) func() {
	start := time.Now()
	return func() {
		BotCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	}
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}()

	log.WithField("addr", addr).Info("Metrics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
