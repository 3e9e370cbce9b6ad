package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
)

func newFeaturesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "List the canonical feature catalog in model order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := features.Catalog()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tKIND\tGROUP\tDEFAULT\tCATEGORIES")
			for i, f := range catalog {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%s\n",
					i, f.Name, f.Kind, f.Group, f.Default, strings.Join(f.Categories, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}
