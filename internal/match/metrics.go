package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hayaoshi_sessions_created_total",
		Help: "Sessions created, by match visibility.",
	}, []string{"visibility"})

	sessionsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hayaoshi_sessions_joined_total",
		Help: "Guest joins that succeeded.",
	})

	buzzes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hayaoshi_buzzes_total",
		Help: "Buzz attempts, by outcome.",
	}, []string{"outcome"})

	judgments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hayaoshi_judgments_total",
		Help: "Host judgments, by verdict.",
	}, []string{"verdict"})

	matchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hayaoshi_matches_finished_total",
		Help: "Matches that reached the finished state.",
	})

	enginesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hayaoshi_engines_active",
		Help: "Session engines currently observing a session.",
	})
)

const (
	visibilityOpen    = "open"
	visibilityPrivate = "private"

	outcomeWon      = "won"
	outcomeRejected = "rejected"

	verdictCorrect = "correct"
	verdictWrong   = "wrong"
)
