package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AbsensiRecorded counts newly stored attendance events.
	AbsensiRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "absensi",
		Name:      "recorded_total",
		Help:      "Attendance events stored, by prayer time and status.",
	}, []string{"waktu", "status"})

	// AbsensiDuplicate counts inserts that hit an existing (santri, tanggal, waktu).
	AbsensiDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "absensi",
		Name:      "duplicate_total",
		Help:      "Attendance submissions that matched an existing event.",
	})

	RiwayatDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "absensi",
		Name:      "riwayat_duration_seconds",
		Help:      "Time spent building attendance reports.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"cache"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "absensi",
		Name:      "notifications_total",
		Help:      "Push notifications handled by the worker, by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "absensi",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "absensi",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "absensi",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
