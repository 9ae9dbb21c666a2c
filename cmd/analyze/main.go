// Package main provides the command-line stammer analyzer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/FreddySam09/verbofix-backend/internal/bootstrap"
	"github.com/FreddySam09/verbofix-backend/internal/config"
	"github.com/FreddySam09/verbofix-backend/internal/report"
	"github.com/FreddySam09/verbofix-backend/internal/transcribe"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	// ErrUnsupportedFormat is returned for an unknown --format value.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrFileNotFound is returned when the input recording does not exist.
	ErrFileNotFound = errors.New("file not found")
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(config.Load).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	format     string
	output     string
	model      string
	servingURL string
	threshold  float64
	transcribe bool
}

func newRootCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "verbofix-analyze <audio-file>",
		Short: "Analyze a recording for stammering",
		Long: `Analyze a speech recording and print a stammer report.

Non-WAV input is converted with ffmpeg. Without --model or --serving-url the
chunks are labeled by the energy heuristic.`,
		Example: `  verbofix-analyze session.wav
  verbofix-analyze session.m4a --format yaml -o report.yaml
  verbofix-analyze session.wav --model weights.yaml --threshold 0.6
  verbofix-analyze session.wav --serving-url http://localhost:8501 --transcribe`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatJSON, "Output format: json, yaml")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&opts.model, "model", "", "Linear model weights file (overrides MODEL_PATH)")
	cmd.Flags().StringVar(&opts.servingURL, "serving-url", "", "Model server base URL (overrides MODEL_SERVING_URL)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Stammer probability threshold in (0, 1)")
	cmd.Flags().BoolVar(&opts.transcribe, "transcribe", false, "Transcribe the recording (requires OPENAI_API_KEY)")
	cmd.MarkFlagsMutuallyExclusive("model", "serving-url")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, path string, opts options) error {
	if opts.format != FormatJSON && opts.format != FormatYAML {
		return fmt.Errorf("%w %q (supported: json, yaml)", ErrUnsupportedFormat, opts.format)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	switch {
	case opts.model != "":
		cfg.ModelPath, cfg.ModelServingURL = opts.model, ""
	case opts.servingURL != "":
		cfg.ModelPath, cfg.ModelServingURL = "", opts.servingURL
	}
	if cmd.Flags().Changed("threshold") {
		cfg.ClassifierThreshold = opts.threshold
	}
	if !opts.transcribe {
		cfg.OpenAIAPIKey = ""
	} else if cfg.OpenAIAPIKey == "" {
		return transcribe.ErrAPIKeyMissing
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLoggerTo(cmd.ErrOrStderr())
	analyzer, err := bootstrap.NewAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	rep := analyzer.AnalyzeFile(cmd.Context(), path)

	if opts.output == "" {
		return writeReport(cmd.OutOrStdout(), opts.format, rep)
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	return writeAndClose(f, opts.format, rep)
}

// writeAndClose writes rep to wc and reports a failed Close.
func writeAndClose(wc io.WriteCloser, format string, rep *report.Report) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()
	return writeReport(wc, format, rep)
}

func writeReport(w io.Writer, format string, rep *report.Report) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
