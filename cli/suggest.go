package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/printer"
	"github.com/goto/salt/term"
	"github.com/goto/sift/core/suggestion"
	"github.com/spf13/cobra"
)

func suggestCmd(cfg *Config) *cobra.Command {
	var (
		req    suggestion.SuggestRequest
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest completions of a prefix",
		Long: heredoc.Doc(`
			Suggest completions of a prefix from the suggestions of a suggester,
			most frequent first. With --field, the values of that property are
			completed instead.
		`),
		Example: heredoc.Doc(`
			$ sift suggest --suggester 1 "mona"
			$ sift suggest --suggester 1 --public --site 2 --limit 5 "par"
			$ sift suggest --suggester 1 --field dcterms:creator "leo"
		`),
		Args: cobra.ExactArgs(1),
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prefix = args[0]

			spinner := printer.Spin("")
			texts, err := runSuggest(cmd.Context(), cfg, req)
			spinner.Stop()
			if err != nil {
				return err
			}

			if asJSON {
				fmt.Println(prettyPrint(texts))
				return nil
			}
			if len(texts) == 0 {
				fmt.Println(term.Yellow("no suggestion found"))
				return nil
			}
			for _, text := range texts {
				fmt.Println(term.Bluef("%s", text))
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&req.SuggesterID, "suggester", "s", 0, "Suggester id")
	cmd.Flags().StringVar(&req.Field, "field", "", "Complete the values of a property term instead of the suggestions")
	cmd.Flags().Int64Var(&req.SiteID, "site", 0, "Restrict to the resources of a site")
	cmd.Flags().BoolVar(&req.Public, "public", false, "Count only the public resources")
	cmd.Flags().IntVarP(&req.Limit, "limit", "l", suggestion.DefaultLimit, "Maximum number of suggestions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the suggestions as JSON")

	_ = cmd.MarkFlagRequired("suggester")

	return cmd
}

func runSuggest(ctx context.Context, cfg *Config, req suggestion.SuggestRequest) ([]string, error) {
	logger := initLogger(cfg.LogLevel)

	svc, err := initServices(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	defer svc.close(logger)

	return svc.suggestService(logger).Suggest(ctx, req)
}
