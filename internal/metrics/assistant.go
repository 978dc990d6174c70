package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		voiceRecognitions,
		selections,
		submits,
		syntheses,
		exports,
	)
}

var (
	voiceRecognitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_voice_recognitions_total",
			Help: "Voice captures by outcome (selected, unknown_label, unrecognized, unavailable).",
		},
		[]string{"outcome"},
	)

	selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_selections_total",
			Help: "Emotion selections by source (voice, dropdown) and outcome.",
		},
		[]string{"source", "outcome"},
	)

	submits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_submits_total",
			Help: "Submit actions by outcome (appended, no_selection).",
		},
		[]string{"outcome"},
	)

	syntheses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_speech_syntheses_total",
			Help: "Spoken responses by outcome (ok, failed).",
		},
		[]string{"outcome"},
	)

	exports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_history_exports_total",
			Help: "Chat history CSV exports.",
		},
	)
)

func VoiceRecognized(outcome string) {
	voiceRecognitions.WithLabelValues(norm(outcome)).Inc()
}

func Selected(source, outcome string) {
	selections.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func Submitted(outcome string) {
	submits.WithLabelValues(norm(outcome)).Inc()
}

func Synthesized(ok bool) {
	if ok {
		syntheses.WithLabelValues("ok").Inc()
		return
	}
	syntheses.WithLabelValues("failed").Inc()
}

func Exported() {
	exports.Inc()
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
