// Package report summarizes labeled ranges into a severity report.
package report

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/FreddySam09/verbofix-backend/internal/timeline"
)

// DateLayout is the layout of Report.Date.
const DateLayout = "2006-01-02"

// NoPeriods is the single StammeredPeriods entry used when nothing was stammered.
const NoPeriods = "None"

// ErrReport is returned when ranges cannot be summarized.
var ErrReport = errors.New("report: cannot synthesize report")

// Severity is a coarse bucket derived from the stammer rate.
type Severity string

// Severity tiers.
const (
	SeverityLow      Severity = "Low"
	SeverityModerate Severity = "Moderate"
	SeverityHigh     Severity = "High"
)

// Severity tier boundaries, applied to the rounded stammer rate.
const (
	moderateFrom = 30.0
	highAbove    = 65.0
)

var recommendations = map[Severity][]string{
	SeverityLow: {
		"Continue practicing fluent speech patterns.",
		"Engage in regular reading aloud exercises.",
	},
	SeverityModerate: {
		"Practice slow and deliberate speech exercises.",
		"Use breathing techniques to reduce stammering.",
		"Consider consulting a speech therapist.",
	},
	SeverityHigh: {
		"Work with a speech therapist for personalized guidance.",
		"Practice pausing techniques during speech.",
		"Use mindfulness exercises to reduce anxiety.",
	},
}

// Report is the result of one analysis. It is not modified after creation.
type Report struct {
	Date             string     `json:"date" yaml:"date"`
	StammeredPeriods []string   `json:"stammeredPeriods" yaml:"stammeredPeriods"`
	StammeredChunks  int        `json:"stammeredChunks" yaml:"stammeredChunks"`
	FluentChunks     int        `json:"fluentChunks" yaml:"fluentChunks"`
	StammerRate      string     `json:"stammerRate" yaml:"stammerRate"`
	StammerRateValue float64    `json:"stammer_rate" yaml:"stammer_rate"`
	AudioDuration    *string    `json:"audioDuration" yaml:"audioDuration"`
	Severity         Severity   `json:"severity" yaml:"severity"`
	Recommendations  []string   `json:"recommendations" yaml:"recommendations"`
	Transcription    string     `json:"transcription" yaml:"transcription"`
	RawOutput        *RawOutput `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`
}

// RawOutput carries diagnostics about how a report was produced.
type RawOutput struct {
	Duration            float64   `json:"duration" yaml:"duration"`
	NumChunks           int       `json:"num_chunks" yaml:"num_chunks"`
	ChunkEnergiesSample []float64 `json:"chunk_energies_sample" yaml:"chunk_energies_sample"`
	Classifier          string    `json:"classifier,omitempty" yaml:"classifier,omitempty"`
	ModelConfMean       *float64  `json:"model_conf_mean,omitempty" yaml:"model_conf_mean,omitempty"`
	HeuristicThreshold  *float64  `json:"heuristic_threshold,omitempty" yaml:"heuristic_threshold,omitempty"`
}

// EnergySampleSize caps RawOutput.ChunkEnergiesSample.
const EnergySampleSize = 50

// SampleEnergies returns a copy of at most EnergySampleSize leading energies.
func SampleEnergies(energies []float64) []float64 {
	n := min(len(energies), EnergySampleSize)
	return append(make([]float64, 0, n), energies[:n]...)
}

// SeverityFor maps a stammer rate in percent to a tier.
func SeverityFor(rate float64) Severity {
	switch {
	case rate < moderateFrom:
		return SeverityLow
	case rate <= highAbove:
		return SeverityModerate
	default:
		return SeverityHigh
	}
}

// Recommendations returns the fixed advice for a severity tier.
func Recommendations(s Severity) []string {
	return append([]string(nil), recommendations[s]...)
}

// Synthesize builds a Report from grouped ranges.
//
// totalChunks is the number of analyzed chunks; when it is zero the member
// counts of ranges are used instead. audioDuration of zero is reported as
// unknown.
func Synthesize(ranges []timeline.Range, totalChunks int, audioDuration float64, transcription string, now time.Time) (*Report, error) {
	var stammered, fluent int
	var periods []string

	for _, r := range ranges {
		switch r.Label {
		case timeline.LabelStammered:
			stammered += len(r.Chunks)
			periods = append(periods, fmt.Sprintf("%.1f-%.1fs", r.Start, r.End))
		case timeline.LabelFluent:
			fluent += len(r.Chunks)
		default:
			return nil, fmt.Errorf("%w: unknown range label %q", ErrReport, r.Label)
		}
	}

	if totalChunks < 0 {
		return nil, fmt.Errorf("%w: negative chunk count %d", ErrReport, totalChunks)
	}
	if totalChunks == 0 {
		totalChunks = stammered + fluent
	}
	if stammered > totalChunks {
		return nil, fmt.Errorf("%w: %d stammered chunks out of %d", ErrReport, stammered, totalChunks)
	}

	var rate float64
	if totalChunks > 0 {
		rate = round2(float64(stammered) / float64(totalChunks) * 100)
	}
	if len(periods) == 0 {
		periods = []string{NoPeriods}
	}

	severity := SeverityFor(rate)
	return &Report{
		Date:             now.Format(DateLayout),
		StammeredPeriods: periods,
		StammeredChunks:  stammered,
		FluentChunks:     fluent,
		StammerRate:      formatRate(rate),
		StammerRateValue: rate,
		AudioDuration:    formatDuration(audioDuration),
		Severity:         severity,
		Recommendations:  Recommendations(severity),
		Transcription:    transcription,
	}, nil
}

// Minimal returns the report used when no audio could be analyzed.
func Minimal(transcription string, now time.Time) *Report {
	return &Report{
		Date:             now.Format(DateLayout),
		StammeredPeriods: []string{NoPeriods},
		StammerRate:      formatRate(0),
		Severity:         SeverityLow,
		Recommendations:  Recommendations(SeverityLow),
		Transcription:    transcription,
	}
}

// round2 rounds the exact binary value of x to two decimals, ties to even.
func round2(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	if err != nil {
		return x
	}
	return r
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}

func formatDuration(d float64) *string {
	if d == 0 || math.IsNaN(d) {
		return nil
	}
	s := fmt.Sprintf("%.1fs", d)
	return &s
}
