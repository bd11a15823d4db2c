package analysis

import (
	"github.com/Tutortoise/voice-screening-service/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicescreen_analyses_total",
			Help: "Analyses by outcome (Healthy, Parkinson's or failure kind)",
		},
		[]string{"outcome"},
	)

	probabilitySource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicescreen_probability_source_total",
			Help: "Successful analyses by probability source",
		},
		[]string{"source"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicescreen_stage_duration_seconds",
			Help:    "Time spent per analysis stage",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)
)

func observe(out Outcome) {
	if out.Failure != nil {
		analysesTotal.WithLabelValues(string(out.Failure.Kind)).Inc()
	} else {
		analysesTotal.WithLabelValues(out.Result.Prediction).Inc()
		probabilitySource.WithLabelValues(string(out.Result.Probability.Source)).Inc()
	}
	observeTimings(out.Timings)
}

func observeTimings(t models.ProcessingTimings) {
	stages := []struct {
		name string
		d    float64
	}{
		{"decode", t.Decode.Seconds()},
		{"resample", t.Resample.Seconds()},
		{"extract", t.Extract.Seconds()},
		{"scale", t.Scale.Seconds()},
		{"inference", t.Inference.Seconds()},
		{"total", t.Total.Seconds()},
	}
	for _, s := range stages {
		if s.d > 0 {
			stageDuration.WithLabelValues(s.name).Observe(s.d)
		}
	}
}
