package cmd

import (
	"errors"
	"fmt"

	"github.com/markusmobius/go-dateparser"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventhive/internal/catalog"
)

func newEventsCommand(a *app) *cobra.Command {
	var costType, location, date string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Browse the event catalog (user)",
		Long: `List upcoming events visible to the signed-in user. Filters are optional and
combine: --type (free or paid), --location (partial venue match) and --date
(today, week, a YYYY-MM-DD day, or a phrase such as "next friday").`,
		Example: `  eventhive events --type free --date week
  eventhive events --location "city park" --date tomorrow -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseFilters(costType, location, date)
			if err != nil {
				return err
			}
			c := catalog.NewUserCatalog(a.gw, a.logger)
			return showCatalog(cmd, a, c, filters, "No events match these filters.")
		},
	}
	cmd.Flags().StringVar(&costType, "type", "", "cost type filter (free or paid)")
	cmd.Flags().StringVar(&location, "location", "", "venue filter")
	cmd.Flags().StringVar(&date, "date", "", "date filter (today, week, YYYY-MM-DD or a natural-language date)")
	return cmd
}

func newDashboardCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "List the events you created (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.NewAdminDashboard(a.gw, a.logger)
			return showCatalog(cmd, a, c, catalog.FilterSet{}, "You have not created any events yet.")
		},
	}
}

func showCatalog(cmd *cobra.Command, a *app, c *catalog.Client, filters catalog.FilterSet, emptyMessage string) error {
	c.OnChange(func(s catalog.State) {
		a.logger.Debug().
			Str("status", string(s.Status)).
			Uint64("generation", s.Generation).
			Str("filters", s.Filters.Query().Encode()).
			Msg("catalog state changed")
	})

	st := c.Fetch(cmd.Context(), filters)
	switch st.Status {
	case catalog.StatusLoaded:
		return renderEvents(cmd.OutOrStdout(), a.opts.format, st.Events, emptyMessage)
	case catalog.StatusLoginRequired, catalog.StatusFailed:
		return &pageError{domain: c.Domain(), problem: st.Problem}
	default:
		return fail(c.Domain(), fmt.Errorf("catalog finished in state %s", st.Status))
	}
}

// parseFilters builds a filter set from flag values. Dates outside the
// keyword/ISO forms go through the natural-language parser.
func parseFilters(costType, location, date string) (catalog.FilterSet, error) {
	ct, err := catalog.ParseCostType(costType)
	if err != nil {
		return catalog.FilterSet{}, err
	}

	sel, err := catalog.ParseDateSelector(date)
	if errors.Is(err, catalog.ErrInvalidFilter) {
		parsed, perr := dateparser.Parse(nil, date)
		if perr != nil {
			return catalog.FilterSet{}, fmt.Errorf("%w: could not understand date %q", catalog.ErrInvalidFilter, date)
		}
		sel = catalog.OnDay(parsed.Time)
	} else if err != nil {
		return catalog.FilterSet{}, err
	}

	return catalog.FilterSet{Type: ct, Location: location, Date: sel}, nil
}
