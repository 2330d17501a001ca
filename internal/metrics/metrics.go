// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	PostsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "microblog_posts_created_total",
			Help: "Microblogs created",
		},
	)

	CommentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microblog_comments_created_total",
			Help: "Comments created, by author kind (registered or guest)",
		},
		[]string{"author"},
	)

	LikesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "microblog_likes_total",
			Help: "Likes recorded",
		},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microblog_uploads_total",
			Help: "Image uploads by result (stored, rejected, failed)",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records one finished request. route is the matched
// route pattern, not the raw path, to keep cardinality bounded.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordComment(guest bool) {
	if guest {
		CommentsCreated.WithLabelValues("guest").Inc()
		return
	}
	CommentsCreated.WithLabelValues("registered").Inc()
}

func RecordUpload(result string) {
	Uploads.WithLabelValues(result).Inc()
}
