package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quizGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "quiz_generations_total",
		Help:      "Quiz generation attempts by outcome",
	}, []string{"outcome"})

	pdfExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "pdf_extractions_total",
		Help:      "PDF text extractions by path and outcome",
	}, []string{"path", "outcome"})

	callReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "call_reconciliations_total",
		Help:      "Background call id reconciliation results",
	}, []string{"outcome"})

	quizFlagMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "quiz_flag_mismatches_total",
		Help:      "Submitted answers whose client correctness flag disagreed with the stored quiz",
	})
)
