package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
)

type predictOptions struct {
	manifest string
	input    string
	stage    string
	onnxLib  string
}

// predictOutput pairs the result with how the input was interpreted
type predictOutput struct {
	*analysis.PredictionResult
	Conversion features.Report `json:"conversion"`
}

func newPredictCmd() *cobra.Command {
	opts := predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one company from a JSON feature file",
		Long: `Loads the manifest, converts the input onto the 45-feature catalog and
prints the ensemble result as JSON. Use --input - to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.manifest, "manifest", defaultManifest, "model manifest")
	cmd.Flags().StringVar(&opts.input, "input", "", "company features as JSON (- for stdin)")
	cmd.Flags().StringVar(&opts.stage, "stage", "", "override the funding stage used for score weighting")
	cmd.Flags().StringVar(&opts.onnxLib, "onnx-lib", os.Getenv("ONNXRUNTIME_LIB"), "onnxruntime shared library")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runPredict(cmd *cobra.Command, opts predictOptions) error {
	raw, err := readInput(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	stage := features.NormalizeCategory(opts.stage)
	if stage != "" && !features.IsStage(stage) {
		return fmt.Errorf("unknown funding stage %q", opts.stage)
	}

	registry, err := models.NewRegistry(opts.manifest, models.ONNXOptions{LibraryPath: opts.onnxLib}, slog.Default())
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	defer registry.Close()

	orchestrator := analysis.NewOrchestrator(registry, analysis.WithLogger(slog.Default()))

	vector, report := features.Convert(raw)
	result, err := orchestrator.Predict(cmd.Context(), vector, stage)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(predictOutput{PredictionResult: result, Conversion: report})
}

// readInput decodes a JSON object from path, or from stdin when path is "-".
// A {"features": {...}} wrapper is unwrapped.
func readInput(stdin io.Reader, path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse input: expected a JSON object")
	}
	if wrapped, ok := raw["features"].(map[string]any); ok {
		return wrapped, nil
	}
	return raw, nil
}
