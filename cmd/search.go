package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydrakit/entitlements/pkg/substore"
)

func newSearchCmd() *cobra.Command {
	var (
		term      string
		providers []string
		plans     []string
		minPrice  float64
		maxPrice  float64
		after     string
		before    string
		sortField string
		sortDesc  bool
		limit     uint64
		offset    uint64
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List mirrored subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			q := substore.SearchQuery{
				Offset:    offset,
				Limit:     limit,
				Term:      term,
				Providers: providers,
				Plans:     plans,
				SortField: sortField,
				SortDesc:  sortDesc,
			}
			if cmd.Flags().Changed("min-price") {
				q.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max-price") {
				q.MaxPrice = &maxPrice
			}
			if q.MinDate, err = parseDateFlag(after); err != nil {
				return err
			}
			if q.MaxDate, err = parseDateFlag(before); err != nil {
				return err
			}

			bounds, err := app.store.FilterBounds(cmd.Context())
			if err != nil {
				return err
			}
			bounds.Clamp(&q)

			result, err := app.store.Search(cmd.Context(), q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SID\tACCOUNT\tNAME\tPROVIDER\tPLAN\tACTIVE\tPRICE\tEXPIRES")
			for _, row := range result.Rows {
				expires := "-"
				if row.Expires != nil {
					expires = row.Expires.Format(time.DateOnly)
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%t\t%.2f\t%s\n",
					row.SID, row.AccountID, row.DisplayName, row.ProviderID,
					row.PlanName, row.Active, row.Price, expires)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows\n", len(result.Rows), result.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&term, "term", "", "Filter by account name substring")
	cmd.Flags().StringSliceVar(&providers, "provider", nil, "Filter by provider ID (repeatable)")
	cmd.Flags().StringSliceVar(&plans, "plan", nil, "Filter by plan name (repeatable)")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "Minimum plan price")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "Maximum plan price")
	cmd.Flags().StringVar(&after, "after", "", "Only subscriptions beginning on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&before, "before", "", "Only subscriptions expiring on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortField, "sort", "sid", "Sort column")
	cmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")
	cmd.Flags().Uint64Var(&limit, "limit", 50, "Page size (0 for all)")
	cmd.Flags().Uint64Var(&offset, "offset", 0, "Rows to skip")

	return cmd
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", value, err)
	}
	return &t, nil
}
