package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"codescope/internal/explain"
	"codescope/internal/graph"
	"codescope/internal/llm"
	"codescope/internal/semantic"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var flagShowContext bool

var explainCmd = &cobra.Command{
	Use:   "explain <file>:<line> [question]",
	Short: "Explain a line of code using project-wide context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, lineNo, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")

		proj, err := openProject(cmd.Context(), flagProject, semantic.BuildOptions{})
		if err != nil {
			return err
		}

		engine := explain.NewEngine(
			graph.NewResolver(proj.builder, nil),
			semantic.NewRetriever(proj.client),
			llm.NewOllamaChat(flagOllama, flagChatModel),
		)
		res, err := engine.Line(cmd.Context(), file, lineNo, question, proj.graph, proj.index)
		if err != nil {
			return err
		}

		if flagShowContext {
			fmt.Println(headerStyle.Render("Context"))
			for _, block := range res.Context {
				fmt.Println(renderProvenance(block))
			}
			fmt.Println()
		}

		rendered, err := glamour.Render(res.Answer, "auto")
		if err != nil {
			// Fall back to the raw answer rather than fail the command.
			rendered = res.Answer
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&flagShowContext, "show-context", false, "print the context blocks used for the explanation")
	rootCmd.AddCommand(explainCmd)
}

// parseTarget splits "path/to/file.ts:42" into path and line number. The
// split is on the last colon so Windows drive letters survive.
func parseTarget(arg string) (string, int, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return "", 0, fmt.Errorf("expected <file>:<line>, got %q", arg)
	}
	lineNo, err := strconv.Atoi(arg[i+1:])
	if err != nil || lineNo < 1 {
		return "", 0, fmt.Errorf("invalid line number in %q", arg)
	}
	file, err := filepath.Abs(arg[:i])
	if err != nil {
		return "", 0, err
	}
	return file, lineNo, nil
}

// renderProvenance formats one context block's label, location, and score.
func renderProvenance(res semantic.RankedResult) string {
	label := semanticLabelStyle.Render("[semantic]")
	if len(res.MatchReasons) > 0 && strings.HasPrefix(res.MatchReasons[0], "resolved") {
		label = resolvedLabelStyle.Render("[resolved]")
	}
	loc := locationStyle.Render(fmt.Sprintf("%s:%d-%d %s",
		res.Unit.File, res.Unit.LineRange.Start, res.Unit.LineRange.End, res.Unit.Symbol))
	score := scoreStyle.Render(fmt.Sprintf("(%.2f %s)", res.Score, res.ConfidenceBand))
	return fmt.Sprintf("  %s %s %s", label, loc, score)
}
