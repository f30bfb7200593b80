package cmd

import (
	"fmt"
	"strings"

	"codescope/internal/embedder"
	"codescope/internal/semantic"

	"github.com/spf13/cobra"
)

var (
	flagK        int
	flagLanguage string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantically search the indexed code units",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		proj, err := openProject(cmd.Context(), flagProject, semantic.BuildOptions{})
		if err != nil {
			return err
		}

		vec, err := embedder.EmbedSingle(cmd.Context(), proj.client, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}

		hits := proj.index.Store.Search(vec, semantic.SearchOptions{
			TopK:    flagK,
			Filters: semantic.SearchFilters{Language: flagLanguage},
		})
		if len(hits) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Results for %q", query)))
		for _, hit := range hits {
			unit, ok := proj.index.Units[hit.ID]
			if !ok {
				continue
			}
			fmt.Printf("\n%s %s\n",
				locationStyle.Render(fmt.Sprintf("%s:%d-%d", unit.File, unit.LineRange.Start, unit.LineRange.End)),
				scoreStyle.Render(fmt.Sprintf("(%.3f)", hit.Similarity)))
			sig := unit.Signature
			if sig == "" {
				sig = firstCodeLine(unit.Code)
			}
			fmt.Printf("  %s %s\n", unit.Kind, sig)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", 10, "number of results to return")
	searchCmd.Flags().StringVar(&flagLanguage, "lang", "", "restrict results to one language")
	rootCmd.AddCommand(searchCmd)
}

func firstCodeLine(code string) string {
	if i := strings.Index(code, "\n"); i >= 0 {
		code = code[:i]
	}
	return strings.TrimSpace(code)
}
