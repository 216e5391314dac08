// Package metrics holds the Prometheus collectors shared by the workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gitstar"

var (
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "update_user_jobs",
		Name:      "enqueued_total",
		Help:      "Update user jobs inserted into the lease table.",
	})

	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "update_user_jobs",
		Name:      "claimed_total",
		Help:      "Leases acquired on update user jobs.",
	})

	JobsLostRace = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "update_user_jobs",
		Name:      "lost_race_total",
		Help:      "Claimed jobs that another worker reclaimed before they were read.",
	})

	JobsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "update_user_jobs",
		Name:      "released_total",
		Help:      "Update user jobs deleted after successful processing.",
	})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "update_user_jobs",
		Name:      "failed_total",
		Help:      "Update user jobs left to expire, by reason.",
	}, []string{"reason"})

	UsersRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "users",
		Name:      "refreshed_total",
		Help:      "Users fetched from GitHub and stored.",
	})

	StarScanChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "star_scan",
		Name:      "checked_total",
		Help:      "Users visited by the star scan, by outcome.",
	}, []string{"outcome"})

	StarScanSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "star_scan",
		Name:      "sweeps_completed_total",
		Help:      "Full passes over all users after which the cursors were reset.",
	})

	StarScanStars = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "star_scan",
		Name:      "stars_cursor",
		Help:      "Stargazers threshold of the last committed star scan checkpoint.",
	})

	RateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "github",
		Name:      "rate_limit_remaining",
		Help:      "Last X-RateLimit-Remaining seen per acting token user.",
	}, []string{"token_user_id"})
)
