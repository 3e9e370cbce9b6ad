package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
)

func newValidateCmd() *cobra.Command {
	var manifest, onnxLib string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a manifest and open every artifact it names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := models.LoadManifest(manifest)
			if err != nil {
				return err
			}
			snap, err := models.LoadSnapshot(m, models.ONNXOptions{LibraryPath: onnxLib})
			if err != nil {
				return err
			}
			defer snap.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "manifest %s (version %s): OK\n\n", manifest, m.Version)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tKIND\tFEATURES\tWEIGHT\tVERSION")
			for _, model := range snap.Models {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\n",
					model.Name, model.Kind, model.FeatureCount, model.Weight, model.Version)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", defaultManifest, "model manifest")
	cmd.Flags().StringVar(&onnxLib, "onnx-lib", os.Getenv("ONNXRUNTIME_LIB"), "onnxruntime shared library")
	return cmd
}
