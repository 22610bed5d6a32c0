package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memeforge_generations_total",
		Help: "Generation attempts by outcome",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memeforge_generation_duration_seconds",
		Help:    "End-to-end generation latency",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60},
	})

	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memeforge_votes_total",
		Help: "Vote mutations by action",
	}, []string{"action"})

	orphansCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memeforge_orphans_cleaned_total",
		Help: "Uploaded objects removed by the orphan reconciler",
	})
)
