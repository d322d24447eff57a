package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/printer"
	"github.com/goto/salt/term"
	"github.com/goto/sift/core/query"
	"github.com/goto/sift/pkg/statsd"
	"github.com/goto/sift/pkg/telemetry"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	engineID      int64
	types         []string
	text          string
	filters       []string
	facets        []string
	facetType     string
	facetOrder    string
	facetLimit    int
	firstDigits   string
	selected      []string
	sortField     string
	sortDesc      bool
	page          int
	perPage       int
	siteID        int64
	authenticated bool
	json          bool
}

func searchCmd(cfg *Config) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the resources indexed by a search engine",
		Example: heredoc.Doc(`
			$ sift search --engine 1 --text "mona lisa"
			$ sift search --engine 1 --filter "dcterms:title:in:paris" --filter "or/dcterms:subject:eq:art"
			$ sift search --engine 1 --facet dcterms:creator --select "dcterms:creator=Leonardo"
			$ sift search --engine 1 --type items --sort dcterms:date --desc --per-page 20 --json
		`),
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}

			spinner := printer.Spin("")
			res, err := runSearch(cmd.Context(), cfg, flags.engineID, q, flags.authenticated)
			spinner.Stop()
			if err != nil {
				return err
			}

			if flags.json {
				fmt.Println(prettyPrint(res))
				return nil
			}
			printSearchResponse(res)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&flags.engineID, "engine", "e", 0, "Search engine id")
	cmd.Flags().StringSliceVarP(&flags.types, "type", "t", nil, "Resource types to search (items, item_sets, media)")
	cmd.Flags().StringVarP(&flags.text, "text", "q", "", "Full text query")
	cmd.Flags().StringArrayVarP(&flags.filters, "filter", "f", nil, "Filter as [joiner/]field:op:value, may be repeated")
	cmd.Flags().StringArrayVar(&flags.facets, "facet", nil, "Field to compute facet counts for, may be repeated")
	cmd.Flags().StringVar(&flags.facetType, "facet-type", string(query.FacetTypeValue), "Facet type (value, resource)")
	cmd.Flags().StringVar(&flags.facetOrder, "facet-order", string(query.FacetOrderTotalDesc), "Facet order (total_desc, total_asc, value_asc, value_desc)")
	cmd.Flags().IntVar(&flags.facetLimit, "facet-limit", query.DefaultFacetLimit, "Maximum number of values per facet, 0 for all")
	cmd.Flags().StringVar(&flags.firstDigits, "first-digits", "", "Bucket facet values on their leading number (true or number of digits)")
	cmd.Flags().StringArrayVar(&flags.selected, "select", nil, "Active facet value as field=value, may be repeated")
	cmd.Flags().StringVar(&flags.sortField, "sort", "", "Sort field (a property term, resource_id or relevance)")
	cmd.Flags().BoolVar(&flags.sortDesc, "desc", false, "Sort in descending order")
	cmd.Flags().IntVar(&flags.page, "page", 0, "Page number, starting at 1")
	cmd.Flags().IntVar(&flags.perPage, "per-page", 0, "Results per page, defaults to the engine setting")
	cmd.Flags().Int64Var(&flags.siteID, "site", 0, "Restrict to the resources of a site")
	cmd.Flags().BoolVar(&flags.authenticated, "authenticated", false, "Search as an authenticated user, private resources included")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the response as JSON")

	_ = cmd.MarkFlagRequired("engine")

	return cmd
}

func (f searchFlags) query() (query.Query, error) {
	q := query.Query{
		ResourceTypes: f.types,
		Text:          f.text,
		Page:          f.page,
		PerPage:       f.perPage,
		SiteID:        f.siteID,
	}

	for _, s := range f.filters {
		field, flt, err := query.ParseFilter(s)
		if err != nil {
			return query.Query{}, err
		}
		q.AddFilter(field, flt)
	}

	if len(f.facets) > 0 {
		firstDigits, err := query.ParseFirstDigits(f.firstDigits)
		if err != nil {
			return query.Query{}, err
		}
		for _, field := range f.facets {
			q.AddFacet(field, query.FacetConfig{
				Type:        query.FacetType(f.facetType),
				Order:       query.FacetOrder(f.facetOrder),
				Limit:       f.facetLimit,
				FirstDigits: firstDigits,
			})
		}
	}

	for _, s := range f.selected {
		i := strings.Index(s, "=")
		if i <= 0 {
			return query.Query{}, fmt.Errorf("invalid facet selection %q, expected field=value", s)
		}
		q.SelectFacet(s[:i], s[i+1:])
	}

	if f.sortField != "" {
		dir := query.SortAsc
		if f.sortDesc {
			dir = query.SortDesc
		}
		q.Sort = &query.Sort{Field: f.sortField, Direction: dir}
	}
	return q, nil
}

func runSearch(ctx context.Context, cfg *Config, engineID int64, q query.Query, authenticated bool) (query.Response, error) {
	logger := initLogger(cfg.LogLevel)

	cfg.Telemetry.AppVersion = Version
	_, cleanUp, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return query.Response{}, err
	}
	defer cleanUp()

	svc, err := initServices(ctx, logger, cfg)
	if err != nil {
		return query.Response{}, err
	}
	defer svc.close(logger)

	querier, err := svc.querier(ctx, logger, engineID)
	if err != nil {
		return query.Response{}, err
	}

	reporter, err := statsd.Init(logger, cfg.StatsD)
	if err != nil {
		return query.Response{}, fmt.Errorf("init statsd: %w", err)
	}
	defer reporter.Close()

	res := query.NewService(querier,
		query.ServiceWithLogger(logger),
		query.ServiceWithStatsDReporter(reporter),
	).Search(ctx, q, authenticated)
	if !res.IsSuccess() {
		return res, fmt.Errorf("search: %s", res.Message)
	}
	return res, nil
}

func printSearchResponse(res query.Response) {
	types := make([]string, 0, len(res.Totals))
	for typ := range res.Totals {
		types = append(types, typ)
	}
	sort.Strings(types)

	report := [][]string{{"TYPE", "ID", "SCORE"}}
	for _, typ := range types {
		for _, r := range res.Results[typ] {
			score := "-"
			if r.Score != nil {
				score = strconv.FormatFloat(*r.Score, 'f', 4, 64)
			}
			report = append(report, []string{typ, strconv.FormatInt(r.ID, 10), score})
		}
	}
	printer.Table(os.Stdout, report)

	for _, typ := range types {
		fmt.Printf("%s: %s\n", typ, term.Greenf("%d", res.Totals[typ]))
	}

	fields := make([]string, 0, len(res.FacetCounts))
	for field := range res.FacetCounts {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Println(term.Cyanf("\n%s", field))
		for _, fc := range res.FacetCounts[field] {
			label := fc.Value
			if fc.Label != "" {
				label = fmt.Sprintf("%s (%s)", fc.Label, fc.Value)
			}
			fmt.Printf("  %s\t%d\n", label, fc.Count)
		}
	}

	fmt.Println(term.Cyanf("\nTo view all the data in JSON format, use flag `--json`"))
}

func prettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", "\t")
	return string(s)
}
