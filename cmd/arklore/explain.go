package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain-similarity <text-a> <text-b>",
	Short: "Embed two texts and explain their cosine similarity",
	Long: `Embed two texts with the configured embedding engine and print the
similarity breakdown: magnitudes, dot product, cosine score, and a
qualitative bucket. Useful for tuning the relevance threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		expl, err := a.memory.ExplainSimilarity(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dimensions:  %d\n", expl.Dimensions)
		fmt.Fprintf(out, "|a|:         %.4f\n", expl.Magnitude1)
		fmt.Fprintf(out, "|b|:         %.4f\n", expl.Magnitude2)
		fmt.Fprintf(out, "dot product: %.4f\n", expl.DotProduct)
		fmt.Fprintf(out, "cosine:      %.4f\n", expl.Cosine)
		fmt.Fprintf(out, "verdict:     %s\n", expl.Interpretation)
		return nil
	},
}
