// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AlertsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "touristquiz_proximity_alerts_total",
		Help: "Proximity alerts delivered, by target kind",
	}, []string{"kind"})
	AlertsThrottled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "touristquiz_proximity_throttled_total",
		Help: "Proximity alerts suppressed by the per-target cooldown, by target kind",
	}, []string{"kind"})
	AnswersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "touristquiz_answers_total",
		Help: "Answer submissions, by outcome",
	}, []string{"outcome"})
	RatingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "touristquiz_ratings_total",
		Help: "Question ratings recorded",
	})
	PointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "touristquiz_points_awarded_total",
		Help: "Points awarded, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		AlertsSent,
		AlertsThrottled,
		AnswersTotal,
		RatingsTotal,
		PointsAwarded,
	)
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
