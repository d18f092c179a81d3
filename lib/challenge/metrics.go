package challenge

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChallengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_challenges_issued",
		Help: "The total number of challenges issued",
	}, []string{"kind"})

	ChallengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_challenges_validated",
		Help: "The total number of challenge validations by terminal status",
	}, []string{"kind", "status"})

	FailedValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_failed_validations",
		Help: "The total number of failed or rejected validations by reason",
	}, []string{"kind", "reason"})

	FlagHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_flag_hits",
		Help: "The number of validations each advisory flag matched",
	}, []string{"flag"})

	ResponseTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glimpse_response_time",
		Help:    "Time between issuance and validation (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(50, math.Pow(2, 17), 16),
	}, []string{"kind"})

	AIDetectionScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glimpse_ai_detection_score",
		Help:    "Automation-likelihood score attached to each graded validation",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"kind"})

	liveChallenges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glimpse_live_challenges",
		Help: "Challenges issued and not yet consumed or swept",
	}, []string{"kind"})
)
