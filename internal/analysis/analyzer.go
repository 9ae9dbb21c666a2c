// Package analysis runs the stammer analysis pipeline end to end:
// load, extract features, classify, smooth, group and report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FreddySam09/verbofix-backend/internal/audio"
	"github.com/FreddySam09/verbofix-backend/internal/classify"
	"github.com/FreddySam09/verbofix-backend/internal/features"
	"github.com/FreddySam09/verbofix-backend/internal/report"
	"github.com/FreddySam09/verbofix-backend/internal/timeline"
	"github.com/FreddySam09/verbofix-backend/internal/transcribe"
)

// Analyzer turns recordings into reports. It holds no per-request state and
// is safe for concurrent use when its collaborators are.
type Analyzer struct {
	loader      audio.Loader
	classifier  classify.Classifier
	transcriber transcribe.Transcriber
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTranscriber sets the speech-to-text collaborator.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(a *Analyzer) {
		if t != nil {
			a.transcriber = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the function used to date reports.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Analyzer. A nil classifier selects the energy heuristic.
func New(loader audio.Loader, classifier classify.Classifier, opts ...Option) *Analyzer {
	if classifier == nil {
		classifier = classify.EnergyHeuristic{}
	}
	a := &Analyzer{
		loader:      loader,
		classifier:  classifier,
		transcriber: transcribe.Nop{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile loads the recording at path and analyzes it. Transcription runs
// alongside loading. A recording that cannot be loaded yields a minimal
// report; AnalyzeFile never returns nil.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) *report.Report {
	var (
		w          audio.Waveform
		transcript string
	)

	var g errgroup.Group
	g.Go(func() error {
		transcript = a.transcribe(ctx, path)
		return nil
	})
	g.Go(func() error {
		var err error
		w, err = a.loader.Load(ctx, path)
		return err
	})

	if err := g.Wait(); err != nil {
		a.logger.Warn("audio load failed, returning minimal report",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return report.Minimal(transcript, a.now())
	}

	return a.AnalyzeWaveform(ctx, w, transcript)
}

// AnalyzeWaveform analyzes an already decoded waveform. Stage failures are
// logged and replaced by their fallback values; a report is always returned.
func (a *Analyzer) AnalyzeWaveform(ctx context.Context, w audio.Waveform, transcript string) *report.Report {
	start := time.Now()
	duration := w.Duration()
	raw := &report.RawOutput{Duration: duration}

	set, err := features.Extract(w)
	if err != nil {
		a.logger.Warn("feature extraction failed, continuing with no chunks",
			slog.String("error", err.Error()),
		)
		set = features.Set{}
	}
	raw.NumChunks = set.Len()
	raw.ChunkEnergiesSample = report.SampleEnergies(set.Energies)

	preds := a.predict(ctx, set)
	raw.Classifier = string(preds.Source)
	raw.ModelConfMean = preds.ModelConfMean
	raw.HeuristicThreshold = preds.HeuristicThreshold

	pairs := timeline.Smooth(preds.Labels, preds.Confidences)
	ranges := timeline.Group(pairs, timeline.Params{
		SampleRate:    w.SampleRate,
		Hop:           features.HopLength,
		ChunkDuration: features.ChunkDuration,
		AudioDuration: duration,
	})

	rep, err := a.synthesize(ranges, set.Len(), duration, transcript)
	if err != nil {
		a.logger.Error("report synthesis failed, returning minimal report",
			slog.String("error", err.Error()),
		)
		rep = report.Minimal(transcript, a.now())
	}
	rep.RawOutput = raw

	a.logger.Info("analysis completed",
		slog.Float64("duration", duration),
		slog.Int("chunks", set.Len()),
		slog.String("classifier", raw.Classifier),
		slog.String("severity", string(rep.Severity)),
		slog.Float64("stammer_rate", rep.StammerRateValue),
		slog.Duration("elapsed", time.Since(start)),
	)

	return rep
}

// predict runs the classifier and guarantees one prediction per chunk.
func (a *Analyzer) predict(ctx context.Context, set features.Set) classify.Predictions {
	preds, err := a.classifier.Predict(ctx, set)
	if err != nil {
		a.logger.Warn("classifier failed, using fallback predictions",
			slog.String("error", err.Error()),
			slog.String("source", string(preds.Source)),
		)
	}
	if preds.Len() != set.Len() || len(preds.Confidences) != preds.Len() {
		a.logger.Warn("classifier returned wrong number of predictions, using energy heuristic",
			slog.Int("chunks", set.Len()),
			slog.Int("predictions", preds.Len()),
		)
		preds, _ = classify.EnergyHeuristic{}.Predict(ctx, set)
	}
	return preds
}

// synthesize builds the report, converting a panic into report.ErrReport.
func (a *Analyzer) synthesize(ranges []timeline.Range, total int, duration float64, transcript string) (rep *report.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep = nil
			err = fmt.Errorf("%w: %v", report.ErrReport, r)
		}
	}()
	return report.Synthesize(ranges, total, duration, transcript, a.now())
}

// transcribe returns the transcript of path, or "" when it cannot be produced.
func (a *Analyzer) transcribe(ctx context.Context, path string) string {
	text, err := a.transcriber.Transcribe(ctx, path)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		a.logger.Log(ctx, level, "transcription failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return text
}
