package cmd

import (
	"fmt"
	"sort"
	"time"

	"codescope/internal/semantic"

	"github.com/spf13/cobra"
)

var (
	flagSkipEmbeddings bool
	flagMaxUnits       int
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Build the dependency graph and semantic index for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Indexing %s...\n", args[0])
		start := time.Now()

		proj, err := openProject(cmd.Context(), args[0], semantic.BuildOptions{
			SkipEmbeddings: flagSkipEmbeddings,
			MaxUnits:       flagMaxUnits,
		})
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		gs := proj.graph.Stats
		is := proj.index.Stats
		fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
		fmt.Printf("  Files:   %d (%d with parse errors)\n", gs.TotalFiles, gs.FilesWithErrors)
		fmt.Printf("  Symbols: %d\n", gs.TotalSymbols)
		fmt.Printf("  Imports: %d\n", gs.TotalImports)
		fmt.Printf("  Units:   %d total, %d embedded\n", is.TotalUnits, is.EmbeddedUnits)
		languages := make([]string, 0, len(gs.FilesByLanguage))
		for language := range gs.FilesByLanguage {
			languages = append(languages, language)
		}
		sort.Strings(languages)
		for _, language := range languages {
			fmt.Printf("    %-12s %d files\n", language, gs.FilesByLanguage[language])
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagSkipEmbeddings, "skip-embeddings", false, "build the graph and units without calling the embedding model")
	indexCmd.Flags().IntVar(&flagMaxUnits, "max-units", 0, "cap the number of code units indexed (0 = no cap)")
	rootCmd.AddCommand(indexCmd)
}
